package pipeline

import (
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
)

func Test_originRepoName(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	assert.Nil(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:pizza-team/pizza-app.git"},
	})
	assert.Nil(t, err)

	assert.Equal(t, "pizza-team/pizza-app", originRepoName(path))
}

func Test_originRepoNameFromHTTPS(t *testing.T) {
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	assert.Nil(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/pizza-team/pizza-app.git"},
	})
	assert.Nil(t, err)

	assert.Equal(t, "pizza-team/pizza-app", originRepoName(path))
}

func Test_originRepoNameWithoutRemote(t *testing.T) {
	path := t.TempDir()
	_, err := git.PlainInit(path, false)
	assert.Nil(t, err)

	assert.Equal(t, "", originRepoName(path))
}
