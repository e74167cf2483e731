package gitrepo

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

// HeadTrigger builds a pipeline trigger from the checked out HEAD
func HeadTrigger(path string, repoName string) (*delivery.Trigger, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open git repository at %s: %s", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("cannot read HEAD: %s", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("cannot read HEAD commit: %s", err)
	}

	trigger := &delivery.Trigger{
		Repo:        repoName,
		SHA:         head.Hash().String(),
		Event:       delivery.Push,
		AuthorName:  commit.Author.Name,
		AuthorEmail: commit.Author.Email,
		Message:     commit.Message,
		Created:     time.Now().Unix(),
	}

	if head.Name().IsBranch() {
		trigger.Branch = head.Name().Short()
	}

	tag, err := tagForCommit(repo, head.Hash())
	if err != nil {
		return nil, err
	}
	if tag != "" {
		trigger.Event = delivery.Tag
		trigger.Tag = tag
	}

	return trigger, nil
}

func tagForCommit(repo *git.Repository, hash plumbing.Hash) (string, error) {
	tags, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("cannot list tags: %s", err)
	}

	foundTag := ""
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tagObject, err := repo.TagObject(ref.Hash()); err == nil {
			// annotated tags point at a tag object, not the commit
			target = tagObject.Target
		}
		if target == hash {
			foundTag = ref.Name().Short()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cannot resolve tags: %s", err)
	}

	return foundTag, nil
}

// ChangedFiles lists the files the commit touched compared to its first parent.
// A root commit returns every file.
func ChangedFiles(path string, sha string) ([]string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open git repository at %s: %s", path, err)
	}

	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("cannot read commit %s: %s", sha, err)
	}

	if commit.NumParents() == 0 {
		files := []string{}
		fileIter, err := commit.Files()
		if err != nil {
			return nil, fmt.Errorf("cannot list files of %s: %s", sha, err)
		}
		err = fileIter.ForEach(func(file *object.File) error {
			files = append(files, file.Name)
			return nil
		})
		return files, err
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("cannot read parent of %s: %s", sha, err)
	}

	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(parentTree, commitTree)
	if err != nil {
		return nil, fmt.Errorf("cannot diff %s against its parent: %s", sha, err)
	}

	files := []string{}
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		files = append(files, name)
	}
	return files, nil
}
