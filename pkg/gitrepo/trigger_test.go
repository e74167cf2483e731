package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

func commitFile(t *testing.T, worktree *git.Worktree, path string, name string, content string) plumbing.Hash {
	err := os.MkdirAll(filepath.Dir(filepath.Join(path, name)), 0755)
	assert.Nil(t, err)
	err = os.WriteFile(filepath.Join(path, name), []byte(content), 0644)
	assert.Nil(t, err)

	_, err = worktree.Add(name)
	assert.Nil(t, err)

	hash, err := worktree.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Sami Chanane",
			Email: "sami@example.com",
			When:  time.Now(),
		},
	})
	assert.Nil(t, err)
	return hash
}

func testRepo(t *testing.T) (string, *git.Repository, *git.Worktree) {
	path := t.TempDir()
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	assert.Nil(t, err)

	worktree, err := repo.Worktree()
	assert.Nil(t, err)

	return path, repo, worktree
}

func Test_headTrigger(t *testing.T) {
	path, _, worktree := testRepo(t)
	hash := commitFile(t, worktree, path, "main.go", "package main\n")

	trigger, err := HeadTrigger(path, "sami-chanane/pizza-app")
	assert.Nil(t, err)
	assert.Equal(t, "sami-chanane/pizza-app", trigger.Repo)
	assert.Equal(t, hash.String(), trigger.SHA)
	assert.Equal(t, "main", trigger.Branch)
	assert.Equal(t, delivery.Push, trigger.Event)
	assert.Equal(t, "Sami Chanane", trigger.AuthorName)
	assert.Nil(t, trigger.Validate())
}

func Test_headTriggerOnTag(t *testing.T) {
	path, repo, worktree := testRepo(t)
	hash := commitFile(t, worktree, path, "main.go", "package main\n")

	_, err := repo.CreateTag("v1.0.0", hash, nil)
	assert.Nil(t, err)

	trigger, err := HeadTrigger(path, "sami-chanane/pizza-app")
	assert.Nil(t, err)
	assert.Equal(t, delivery.Tag, trigger.Event)
	assert.Equal(t, "v1.0.0", trigger.Tag)
}

func Test_changedFiles(t *testing.T) {
	path, _, worktree := testRepo(t)
	rootHash := commitFile(t, worktree, path, "main.go", "package main\n")
	secondHash := commitFile(t, worktree, path, "handlers/order.go", "package handlers\n")

	files, err := ChangedFiles(path, rootHash.String())
	assert.Nil(t, err)
	assert.Equal(t, []string{"main.go"}, files, "a root commit changes every file")

	files, err = ChangedFiles(path, secondHash.String())
	assert.Nil(t, err)
	assert.Equal(t, []string{"handlers/order.go"}, files)
}

func Test_workspacePinsTheCommit(t *testing.T) {
	path, _, worktree := testRepo(t)
	firstHash := commitFile(t, worktree, path, "main.go", "package main // v1\n")
	commitFile(t, worktree, path, "main.go", "package main // v2\n")

	source := NewSource(path, "", "", t.TempDir())
	workspace, cleanup, err := source.Workspace(firstHash.String())
	assert.Nil(t, err)
	defer cleanup()

	content, err := os.ReadFile(filepath.Join(workspace, "main.go"))
	assert.Nil(t, err)
	assert.Equal(t, "package main // v1\n", string(content))
}
