package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// Source keeps a cached clone of the app repository and
// hands out throwaway workspaces pinned at a commit.
type Source struct {
	cloneURL  string
	username  string
	token     string
	cachePath string

	lock sync.Mutex
	repo *git.Repository
}

func NewSource(cloneURL string, username string, token string, cachePath string) *Source {
	return &Source{
		cloneURL:  cloneURL,
		username:  username,
		token:     token,
		cachePath: cachePath,
	}
}

func (s *Source) auth() *http.BasicAuth {
	if s.token == "" {
		return nil
	}
	username := s.username
	if username == "" {
		username = "git"
	}
	return &http.BasicAuth{
		Username: username,
		Password: s.token,
	}
}

func (s *Source) sync() error {
	if s.repo == nil {
		repoPath := filepath.Join(s.cachePath, strings.ReplaceAll(s.cloneURL, "/", "%"))

		repo, err := git.PlainOpen(repoPath)
		if err == nil {
			s.repo = repo
		} else {
			os.RemoveAll(repoPath)
			err := os.MkdirAll(repoPath, 0754)
			if err != nil {
				return errors.WithMessage(err, "couldn't create folder")
			}

			repo, err = git.PlainClone(repoPath, false, &git.CloneOptions{
				URL:  s.cloneURL,
				Auth: s.auth(),
				Tags: git.AllTags,
			})
			if err != nil {
				return errors.WithMessage(err, "couldn't clone")
			}
			s.repo = repo
			return nil
		}
	}

	err := s.repo.Fetch(&git.FetchOptions{
		Auth:  s.auth(),
		Tags:  git.AllTags,
		Prune: true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errors.WithMessage(err, "couldn't fetch")
	}
	return nil
}

// FileAt reads one file at a commit straight from the object store,
// no workspace checkout. A missing file is not an error, the caller
// falls back to the defaults.
func (s *Source) FileAt(sha string, path string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.sync()
	if err != nil {
		return nil, err
	}

	commit, err := s.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %s", sha, err)
	}

	file, err := commit.File(path)
	if err == object.ErrFileNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s at %s: %s", path, sha, err)
	}

	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("cannot read %s at %s: %s", path, sha, err)
	}
	return []byte(contents), nil
}

// Workspace copies the cached clone and checks out the commit, detached.
// The caller runs the pipeline in the returned folder and calls cleanup when done.
func (s *Source) Workspace(sha string) (string, func(), error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.sync()
	if err != nil {
		return "", nil, err
	}

	tmpPath, err := os.MkdirTemp("", "pizza-workspace-")
	if err != nil {
		return "", nil, errors.WithMessage(err, "couldn't get temporary directory")
	}
	cleanup := func() {
		os.RemoveAll(tmpPath)
	}

	repoPath := filepath.Join(s.cachePath, strings.ReplaceAll(s.cloneURL, "/", "%"))
	err = copy.Copy(repoPath, tmpPath)
	if err != nil {
		cleanup()
		return "", nil, errors.WithMessage(err, "could not make copy of repo")
	}

	copiedRepo, err := git.PlainOpen(tmpPath)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("cannot open git repository at %s: %s", tmpPath, err)
	}

	worktree, err := copiedRepo.Worktree()
	if err != nil {
		cleanup()
		return "", nil, errors.WithMessage(err, "could not get working copy")
	}

	err = worktree.Checkout(&git.CheckoutOptions{
		Hash: plumbing.NewHash(sha),
	})
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("cannot check out %s: %s", sha, err)
	}

	return tmpPath, cleanup, nil
}
