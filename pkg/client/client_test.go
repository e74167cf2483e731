package client

import (
	"encoding/base32"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/cmd/pizzad/config"
	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/token"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

func testServer(t *testing.T, s *store.Store, artifacts *artifact.Store) *httptest.Server {
	router := server.SetupRouter(&config.Config{}, s, artifacts, nil, nil)
	testServer := httptest.NewServer(router)
	t.Cleanup(testServer.Close)
	return testServer
}

func authedClient(t *testing.T, s *store.Store, login string, admin bool, addr string) Client {
	user := &model.User{
		Login: login,
		Secret: base32.StdEncoding.EncodeToString(
			securecookie.GenerateRandomKey(32),
		),
		Admin: admin,
	}
	err := s.CreateUser(user)
	assert.Nil(t, err)

	tokenInstance := token.New(token.UserToken, user.Login)
	tokenStr, err := tokenInstance.Sign(user.Secret)
	assert.Nil(t, err)

	oauthConfig := new(oauth2.Config)
	auther := oauthConfig.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: tokenStr,
		},
	)

	return NewClient(addr, auther)
}

func Test_runs(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()
	artifacts, err := artifact.NewStore(t.TempDir())
	assert.Nil(t, err)

	testServer := testServer(t, s, artifacts)
	client := authedClient(t, s, "admin", false, testServer.URL)

	runID, err := client.TriggerPost(&delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    "ec8e4f5dcb2750789716594835d3f0fef89d6bcf",
		Branch: "main",
		Event:  delivery.Push,
	})
	assert.Nil(t, err)
	assert.NotEmpty(t, runID)

	run, err := client.RunGet(runID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunQueued, run.Status)
	assert.Equal(t, "admin", run.Trigger.TriggeredBy)

	runs, err := client.RunsGet("pizza-team/pizza-app", "", nil, "", "", 0, 0)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(runs))

	err = artifacts.Save(runID, "coverage.out", []byte("ok\tpizza\t97.3%\n"))
	assert.Nil(t, err)

	files, err := client.RunArtifactsGet(runID)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(files))
	assert.Equal(t, "coverage.out", files[0].Name)

	content, err := client.RunArtifactGet(runID, "coverage.out")
	assert.Nil(t, err)
	assert.Equal(t, "ok\tpizza\t97.3%\n", string(content))

	status, err := client.StatusGet()
	assert.Nil(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.QueuedRuns)
}

func Test_users(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	testServer := testServer(t, s, nil)
	client := authedClient(t, s, "admin", true, testServer.URL)

	created, err := client.UserPost("laszlo")
	assert.Nil(t, err)
	assert.Equal(t, "laszlo", created.Login)
	assert.NotEmpty(t, created.Token)

	fetched, err := client.UserGet("laszlo")
	assert.Nil(t, err)
	assert.Equal(t, "laszlo", fetched.Login)

	users, err := client.UsersGet()
	assert.Nil(t, err)
	assert.Equal(t, 2, len(users))

	err = client.UserDelete("laszlo")
	assert.Nil(t, err)

	users, err = client.UsersGet()
	assert.Nil(t, err)
	assert.Equal(t, 1, len(users))
}
