package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/cmd/pizzad/config"
	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

const testSHA = "ec8e4f5dcb2750789716594835d3f0fef89d6bcf"

func Test_trigger(t *testing.T) {
	store := store.NewTest()

	router := SetupRouter(&config.Config{}, store, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, store, "ci", false)

	body, _ := json.Marshal(delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "main",
		Event:  delivery.Push,
	})
	resp, err := http.Post(
		server.URL+"/api/trigger?access_token="+tokenStr,
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var idResponse map[string]string
	respBody, _ := io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &idResponse)
	assert.Nil(t, err)
	if idResponse["id"] == "" {
		t.Errorf("should return the id of the created run")
	}

	resp, err = http.Get(server.URL + "/api/run/" + idResponse["id"] + "?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var run delivery.Run
	respBody, _ = io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &run)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunQueued, run.Status)
	assert.Equal(t, model.RunTypeDelivery, run.Type)
	assert.Equal(t, "ci", run.Trigger.TriggeredBy, "the server should stamp the authenticated user on the trigger")

	resp, err = http.Get(server.URL + "/api/runs?repo=pizza-team/pizza-app&access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []*delivery.Run
	respBody, _ = io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &runs)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(runs))
}

func Test_triggerValidation(t *testing.T) {
	store := store.NewTest()

	router := SetupRouter(&config.Config{}, store, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, store, "ci", false)

	body, _ := json.Marshal(delivery.Trigger{
		Repo:  "pizza-team/pizza-app",
		SHA:   "abc123",
		Event: delivery.Push,
	})
	resp, err := http.Post(
		server.URL+"/api/trigger?access_token="+tokenStr,
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "an abbreviated hash should be rejected")

	resp, err = http.Post(
		server.URL+"/api/trigger?access_token="+tokenStr,
		"application/json",
		bytes.NewBufferString("not-json"),
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_triggerPolicy(t *testing.T) {
	s := store.NewTest()

	source := &fakeSettingsSource{settings: `
policies:
- branch: main
  event: push
`}
	router := SetupRouter(&config.Config{}, s, nil, source, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "ci", false)

	body, _ := json.Marshal(delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "main",
		Event:  delivery.Push,
	})
	resp, err := http.Post(
		server.URL+"/api/trigger?access_token="+tokenStr,
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "a push to main matches the policy")

	body, _ = json.Marshal(delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "feature-1",
		Event:  delivery.Push,
	})
	resp, err = http.Post(
		server.URL+"/api/trigger?access_token="+tokenStr,
		"application/json",
		bytes.NewBuffer(body),
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "a feature branch does not match the policy")

	runs, err := s.Runs("", "", nil, "", "", 0, 0)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(runs), "a rejected trigger should not be recorded")
}

type fakeSettingsSource struct {
	settings string
}

func (s *fakeSettingsSource) FileAt(sha string, path string) ([]byte, error) {
	return []byte(s.settings), nil
}

func Test_getRun_notFound(t *testing.T) {
	store := store.NewTest()

	router := SetupRouter(&config.Config{}, store, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, store, "ci", false)

	resp, err := http.Get(server.URL + "/api/run/no-such-run?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_rollback(t *testing.T) {
	s := store.NewTest()

	router := SetupRouter(&config.Config{}, s, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "operator", false)

	deployed := seedFinishedRun(t, s, delivery.RunSuccess, "registry.pizza.dev/pizza-team/pizza-app:abcdef1")

	resp, err := http.Post(
		server.URL+"/api/rollback?repo=pizza-team/pizza-app&access_token="+tokenStr,
		"application/json",
		nil,
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var idResponse map[string]string
	respBody, _ := io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &idResponse)
	assert.Nil(t, err)

	rollbackRun, err := s.Run(idResponse["id"])
	assert.Nil(t, err)
	assert.Equal(t, model.RunTypeRollback, rollbackRun.Type)
	assert.Equal(t, delivery.RunQueued.String(), rollbackRun.Status)
	assert.Equal(t, deployed.Image, rollbackRun.Image, "the rollback run should reuse the image of the target run")
	assert.Equal(t, deployed.SHA, rollbackRun.SHA)
	assert.Equal(t, "operator", rollbackRun.TriggeredBy)
}

func Test_rollback_toExplicitRun(t *testing.T) {
	s := store.NewTest()

	router := SetupRouter(&config.Config{}, s, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "operator", false)

	older := seedFinishedRun(t, s, delivery.RunSuccess, "registry.pizza.dev/pizza-team/pizza-app:abcdef1")
	seedFinishedRun(t, s, delivery.RunSuccess, "registry.pizza.dev/pizza-team/pizza-app:abcdef2")

	resp, err := http.Post(
		server.URL+"/api/rollback?runId="+older.ID+"&access_token="+tokenStr,
		"application/json",
		nil,
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var idResponse map[string]string
	respBody, _ := io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &idResponse)
	assert.Nil(t, err)

	rollbackRun, err := s.Run(idResponse["id"])
	assert.Nil(t, err)
	assert.Equal(t, older.Image, rollbackRun.Image)
}

func Test_rollback_preconditions(t *testing.T) {
	s := store.NewTest()

	router := SetupRouter(&config.Config{}, s, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "operator", false)

	resp, err := http.Post(server.URL+"/api/rollback?access_token="+tokenStr, "application/json", nil)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "repo or runId is mandatory")

	resp, err = http.Post(
		server.URL+"/api/rollback?repo=pizza-team/pizza-app&access_token="+tokenStr,
		"application/json",
		nil,
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing was deployed yet")

	failed := seedFinishedRun(t, s, delivery.RunFailure, "registry.pizza.dev/pizza-team/pizza-app:abcdef1")
	resp, err = http.Post(
		server.URL+"/api/rollback?runId="+failed.ID+"&access_token="+tokenStr,
		"application/json",
		nil,
	)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "a failed run is not a rollback target")
}

func Test_getStatus(t *testing.T) {
	s := store.NewTest()

	router := SetupRouter(&config.Config{}, s, nil, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "ci", false)

	trigger := &delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "main",
		Event:  delivery.Push,
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	_, err = s.CreateRun(run)
	assert.Nil(t, err)

	resp, err := http.Get(server.URL + "/api/status?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	respBody, _ := io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &status)
	assert.Nil(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.QueuedRuns)
	if status.LatestRun == nil {
		t.Errorf("should return the latest run")
	}
}

func Test_runArtifacts(t *testing.T) {
	s := store.NewTest()
	artifacts, err := artifact.NewStore(t.TempDir())
	assert.Nil(t, err)

	router := SetupRouter(&config.Config{}, s, artifacts, nil, nil)
	server := httptest.NewServer(router)
	defer server.Close()

	tokenStr := createUserWithToken(t, s, "ci", false)

	trigger := &delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "main",
		Event:  delivery.Push,
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	run, err = s.CreateRun(run)
	assert.Nil(t, err)

	err = artifacts.Save(run.ID, "coverage.out", []byte("mode: set\n"))
	assert.Nil(t, err)
	logFile, err := artifacts.LogWriter(run.ID, "lint")
	assert.Nil(t, err)
	logFile.Write([]byte("0 issues.\n"))
	logFile.Close()

	resp, err := http.Get(server.URL + "/api/run/" + run.ID + "/artifacts?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var files []artifact.Artifact
	respBody, _ := io.ReadAll(resp.Body)
	err = json.Unmarshal(respBody, &files)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(files))
	assert.Equal(t, "coverage.out", files[0].Name)
	assert.Equal(t, "logs/lint.log", files[1].Name)

	resp, err = http.Get(server.URL + "/api/run/" + run.ID + "/artifact/logs/lint.log?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	content, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "0 issues.\n", string(content))

	resp, err = http.Get(server.URL + "/api/run/" + run.ID + "/artifact/no-such-file?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/run/no-such-run/artifacts?access_token=" + tokenStr)
	assert.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func seedFinishedRun(t *testing.T, s *store.Store, status delivery.RunStatus, image string) *model.Run {
	trigger := &delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    testSHA,
		Branch: "main",
		Event:  delivery.Push,
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	run, err = s.CreateRun(run)
	assert.Nil(t, err)

	now := time.Now().Unix()
	err = s.UpdateRunStatus(run.ID, status.String(), "", now, now)
	assert.Nil(t, err)
	err = s.UpdateRunImage(run.ID, image, "sha256:4a1d3b")
	assert.Nil(t, err)

	run, err = s.Run(run.ID)
	assert.Nil(t, err)
	return run
}
