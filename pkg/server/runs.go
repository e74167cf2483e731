package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/streaming"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

func trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)
	user := ctx.Value("user").(*model.User)
	clientHub := ctx.Value("clientHub").(*streaming.ClientHub)

	body, _ := io.ReadAll(r.Body)
	var t delivery.Trigger
	err := json.NewDecoder(bytes.NewReader(body)).Decode(&t)
	if err != nil {
		logrus.Errorf("cannot decode trigger: %s", err)
		http.Error(w, http.StatusText(400), 400)
		return
	}

	err = t.Validate()
	if err != nil {
		http.Error(w, fmt.Sprintf("%s: %s", http.StatusText(http.StatusBadRequest), err), http.StatusBadRequest)
		return
	}

	// the settings of the triggering commit decide if this trigger starts a run,
	// a non matching trigger is rejected, not recorded as a failed run
	gitSource, _ := ctx.Value("gitSource").(SettingsSource)
	if gitSource != nil {
		raw, err := gitSource.FileAt(t.SHA, delivery.DefaultSettingsFile)
		if err != nil {
			logrus.Errorf("cannot read the settings of %s: %s", t.ShortSHA(), err)
			http.Error(w, fmt.Sprintf("%s - cannot resolve %s in the delivery repository", http.StatusText(http.StatusBadRequest), t.SHA), http.StatusBadRequest)
			return
		}
		settings, err := delivery.LoadSettings(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("%s - settings of %s are invalid: %s", http.StatusText(http.StatusBadRequest), t.ShortSHA(), err), http.StatusBadRequest)
			return
		}
		err = settings.Validate()
		if err != nil {
			http.Error(w, fmt.Sprintf("%s - settings of %s are invalid: %s", http.StatusText(http.StatusBadRequest), t.ShortSHA(), err), http.StatusBadRequest)
			return
		}
		if !settings.TriggerMatches(&t) {
			http.Error(w, fmt.Sprintf("%s: %s", http.StatusText(http.StatusBadRequest), "trigger does not match any delivery policy"), http.StatusBadRequest)
			return
		}
	}

	t.TriggeredBy = user.Login

	run, err := model.ToRun(&t)
	if err != nil {
		http.Error(w, fmt.Sprintf("%s - cannot serialize trigger: %s", http.StatusText(http.StatusInternalServerError), err), http.StatusInternalServerError)
		return
	}

	run, err = store.CreateRun(run)
	if err != nil {
		http.Error(w, fmt.Sprintf("%s - cannot save run: %s", http.StatusText(http.StatusInternalServerError), err), http.StatusInternalServerError)
		return
	}

	broadcastRun(clientHub, streaming.RunCreatedEventString, run)

	runIDBytes, _ := json.Marshal(map[string]string{
		"id": run.ID,
	})

	w.WriteHeader(http.StatusAccepted)
	w.Write(runIDBytes)
}

func getRuns(w http.ResponseWriter, r *http.Request) {
	var repo, branch, sha, status string
	var gitEvent *delivery.GitEvent
	limit := 10
	offset := 0

	params := r.URL.Query()
	if val, ok := params["limit"]; ok {
		l, err := strconv.Atoi(val[0])
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest)+" - "+err.Error(), http.StatusBadRequest)
			return
		}
		limit = l
	}
	if val, ok := params["offset"]; ok {
		o, err := strconv.Atoi(val[0])
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest)+" - "+err.Error(), http.StatusBadRequest)
			return
		}
		offset = o
	}

	if val, ok := params["event"]; ok {
		event, err := delivery.GitEventFromString(val[0])
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest)+" - "+err.Error(), http.StatusBadRequest)
			return
		}
		gitEvent = event
	}
	if val, ok := params["status"]; ok {
		_, err := delivery.RunStatusFromString(val[0])
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest)+" - "+err.Error(), http.StatusBadRequest)
			return
		}
		status = val[0]
	}

	if val, ok := params["repo"]; ok {
		repo = val[0]
	}
	if val, ok := params["branch"]; ok {
		branch = val[0]
	}
	if val, ok := params["sha"]; ok {
		sha = val[0]
	}

	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	runModels, err := store.Runs(repo, branch, gitEvent, sha, status, limit, offset)
	if err != nil {
		logrus.Errorf("cannot get runs: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	runs := []*delivery.Run{}
	for _, runModel := range runModels {
		run, err := runModel.AsDelivery()
		if err != nil {
			logrus.Errorf("cannot deserialize run: %s", err)
			http.Error(w, http.StatusText(500), 500)
			return
		}
		runs = append(runs, run)
	}

	runsStr, err := json.Marshal(runs)
	if err != nil {
		logrus.Errorf("cannot serialize runs: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(runsStr)
}

func getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	runModel, err := store.Run(id)
	if err == sql.ErrNoRows {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	} else if err != nil {
		logrus.Errorf("cannot get run: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	run, err := runModel.AsDelivery()
	if err != nil {
		logrus.Errorf("cannot deserialize run: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	runStr, err := json.Marshal(run)
	if err != nil {
		logrus.Errorf("cannot serialize run: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(runStr)
}

func getRunArtifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)
	artifacts := ctx.Value("artifacts").(*artifact.Store)

	_, err := store.Run(id)
	if err == sql.ErrNoRows {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	} else if err != nil {
		logrus.Errorf("cannot get run: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	files, err := artifacts.List(id)
	if err != nil {
		logrus.Errorf("cannot list artifacts of run %s: %s", id, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filesStr, err := json.Marshal(files)
	if err != nil {
		logrus.Errorf("cannot serialize artifacts: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(filesStr)
}

func downloadRunArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// stage logs are nested under logs/, the artifact name is the whole remaining path
	name := chi.URLParam(r, "*")

	ctx := r.Context()
	artifacts := ctx.Value("artifacts").(*artifact.Store)

	file, err := artifacts.Open(id, name)
	if err != nil {
		logrus.Warnf("cannot open artifact %s of run %s: %s", name, id, err)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, file)
}

func rollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)
	user := ctx.Value("user").(*model.User)
	clientHub := ctx.Value("clientHub").(*streaming.ClientHub)

	params := r.URL.Query()
	var repo, runID string
	if val, ok := params["runId"]; ok {
		runID = val[0]
	}
	if val, ok := params["repo"]; ok {
		repo = val[0]
	}
	if runID == "" && repo == "" {
		http.Error(w, fmt.Sprintf("%s: %s", http.StatusText(http.StatusBadRequest), "repo or runId parameter is mandatory"), http.StatusBadRequest)
		return
	}

	var target *model.Run
	var err error
	if runID != "" {
		target, err = store.Run(runID)
		if err == sql.ErrNoRows {
			http.Error(w, fmt.Sprintf("%s - cannot find run %s", http.StatusText(http.StatusNotFound), runID), http.StatusNotFound)
			return
		}
	} else {
		target, err = store.LatestSuccessfulDeploy(repo)
		if err == sql.ErrNoRows {
			http.Error(w, fmt.Sprintf("%s - no successful deploy found for %s", http.StatusText(http.StatusNotFound), repo), http.StatusNotFound)
			return
		}
	}
	if err != nil {
		logrus.Errorf("cannot get rollback target: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if target.Status != delivery.RunSuccess.String() &&
		target.Status != delivery.RunUnstable.String() {
		http.Error(w, fmt.Sprintf("%s - cannot roll back to a %s run", http.StatusText(http.StatusBadRequest), target.Status), http.StatusBadRequest)
		return
	}
	if target.Image == "" {
		http.Error(w, fmt.Sprintf("%s - run %s did not produce a deployable image", http.StatusText(http.StatusBadRequest), target.ID), http.StatusBadRequest)
		return
	}

	rollbackRun := &model.Run{
		Type:         model.RunTypeRollback,
		Blob:         target.Blob,
		Repository:   target.Repository,
		Branch:       target.Branch,
		SourceBranch: target.SourceBranch,
		TargetBranch: target.TargetBranch,
		Tag:          target.Tag,
		Event:        target.Event,
		SHA:          target.SHA,
		TriggeredBy:  user.Login,
		Image:        target.Image,
		Digest:       target.Digest,
	}

	rollbackRun, err = store.CreateRun(rollbackRun)
	if err != nil {
		http.Error(w, fmt.Sprintf("%s - cannot save rollback run: %s", http.StatusText(http.StatusInternalServerError), err), http.StatusInternalServerError)
		return
	}

	broadcastRun(clientHub, streaming.RunCreatedEventString, rollbackRun)

	runIDBytes, _ := json.Marshal(map[string]string{
		"id": rollbackRun.ID,
	})

	w.WriteHeader(http.StatusAccepted)
	w.Write(runIDBytes)
}

func getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	queued, err := store.UnprocessedRuns()
	if err != nil {
		logrus.Errorf("cannot get unprocessed runs: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	latest, err := store.Runs("", "", nil, "", "", 1, 0)
	if err != nil {
		logrus.Errorf("cannot get runs: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := statusResponse{
		Status:     "ok",
		QueuedRuns: len(queued),
	}
	if len(latest) == 1 {
		latestRun, err := latest[0].AsDelivery()
		if err != nil {
			logrus.Errorf("cannot deserialize run: %s", err)
			http.Error(w, http.StatusText(500), 500)
			return
		}
		status.LatestRun = latestRun
	}

	statusBytes, _ := json.Marshal(status)

	w.WriteHeader(http.StatusOK)
	w.Write(statusBytes)
}

type statusResponse struct {
	Status     string        `json:"status"`
	QueuedRuns int           `json:"queuedRuns"`
	LatestRun  *delivery.Run `json:"latestRun,omitempty"`
}

func broadcastRun(hub *streaming.ClientHub, event string, run *model.Run) {
	apiRun, err := run.AsDelivery()
	if err != nil {
		logrus.Warnf("cannot convert run for streaming: %s", err)
		return
	}

	streaming.BroadcastRunEvent(hub, event, apiRun)
}
