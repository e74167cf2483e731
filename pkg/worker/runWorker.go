package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/notifications"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/streaming"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

// WorkspaceSource hands out pinned checkouts of the app repository
type WorkspaceSource interface {
	Workspace(sha string) (string, func(), error)
}

// RunWorker picks up queued runs and executes them, one at a time.
// Stage concurrency lives inside a run, not across runs: two concurrent
// runs would race on the image tag and the deployment.
type RunWorker struct {
	store                *store.Store
	source               WorkspaceSource
	artifacts            *artifact.Store
	stages               []runner.Stage
	notificationsManager notifications.Manager
	clientHub            *streaming.ClientHub
	runsProcessed        prometheus.Counter
	perf                 *prometheus.HistogramVec
}

func NewRunWorker(
	store *store.Store,
	source WorkspaceSource,
	artifacts *artifact.Store,
	stages []runner.Stage,
	notificationsManager notifications.Manager,
	clientHub *streaming.ClientHub,
	runsProcessed prometheus.Counter,
	perf *prometheus.HistogramVec,
) *RunWorker {
	return &RunWorker{
		store:                store,
		source:               source,
		artifacts:            artifacts,
		stages:               stages,
		notificationsManager: notificationsManager,
		clientHub:            clientHub,
		runsProcessed:        runsProcessed,
		perf:                 perf,
	}
}

func (w *RunWorker) Run() {
	for {
		runs, err := w.store.UnprocessedRuns()
		if err != nil {
			logrus.Errorf("Could not fetch unprocessed runs %s", err.Error())
			time.Sleep(1 * time.Second)
			continue
		}

		for _, run := range runs {
			if w.runsProcessed != nil {
				w.runsProcessed.Inc()
			}
			w.processRun(run)
		}

		time.Sleep(100 * time.Millisecond)
	}
}

func (w *RunWorker) processRun(run *model.Run) {
	logrus.Infof("processing run %s", run.ID)
	started := time.Now().Unix()

	err := w.store.UpdateRunStatus(run.ID, delivery.RunRunning.String(), "", started, 0)
	if err != nil {
		// leave it queued, the next tick retries
		logrus.Errorf("cannot update run status: %s", err)
		return
	}
	w.broadcast(run.ID, streaming.RunStatusUpdatedEventString)

	trigger, err := run.Trigger()
	if err != nil {
		w.finishRun(run.ID, delivery.RunFailure, fmt.Sprintf("cannot deserialize trigger: %s", err), started)
		return
	}

	workspace, cleanup, err := w.source.Workspace(trigger.SHA)
	if err != nil {
		w.finishRun(run.ID, delivery.RunFailure, fmt.Sprintf("cannot check out %s: %s", trigger.ShortSHA(), err), started)
		return
	}
	defer cleanup()

	settings, err := loadSettings(workspace, trigger)
	if err != nil {
		w.finishRun(run.ID, delivery.RunFailure, err.Error(), started)
		return
	}

	plan := delivery.NewPlan(settings)
	runCtx := runner.NewContext(run.ID, trigger, settings, workspace, w.artifacts)
	runCtx.Output = streaming.NewRunLogWriter(w.clientHub, run.ID)

	if run.Type == model.RunTypeRollback {
		// the image of the target run is already built, scanned and signed,
		// a rollback run is the deploy stage alone
		if settings.Deploy == nil {
			w.finishRun(run.ID, delivery.RunFailure, "deploy is not configured at the target commit", started)
			return
		}
		image, err := delivery.ParseImageRef(run.Image)
		if err != nil {
			w.finishRun(run.ID, delivery.RunFailure, fmt.Sprintf("cannot parse the rollback image: %s", err), started)
			return
		}
		image.Digest = run.Digest
		runCtx.Image = image
		plan = rollbackPlan(plan)
	}

	results, status, desc := w.execute(runCtx, plan)

	finished := time.Now().Unix()
	err = w.store.UpdateRunResults(run.ID, results)
	if err != nil {
		logrus.Errorf("cannot save the results of %s: %s", run.ID, err)
	}
	err = w.store.UpdateRunStatus(run.ID, status.String(), desc, started, finished)
	if err != nil {
		logrus.Errorf("cannot update run status: %s", err)
	}
	w.broadcast(run.ID, streaming.RunStatusUpdatedEventString)
	w.notify(run.ID)
}

func (w *RunWorker) execute(runCtx *runner.Context, plan *delivery.Plan) ([]delivery.StageResult, delivery.RunStatus, string) {
	recorded := []delivery.StageResult{}
	persist := func(runID string, result delivery.StageResult) error {
		recorded = upsertResult(recorded, result)
		err := w.store.UpdateRunResults(runID, recorded)
		if err != nil {
			return err
		}
		w.broadcast(runID, streaming.RunStatusUpdatedEventString)
		return nil
	}

	pipelineRunner := runner.NewRunner(w.stages, runner.Hooks{
		OnStageStart: persist,
		OnStageDone: func(runID string, result delivery.StageResult) error {
			if w.perf != nil && result.Finished > 0 {
				w.perf.WithLabelValues(string(result.ID)).Observe(float64(result.Finished - result.Started))
			}
			if result.ID == delivery.StageBuildPush &&
				result.Status == delivery.StageSuccess &&
				runCtx.Image != nil {
				err := w.store.UpdateRunImage(runID, runCtx.Image.String(), runCtx.Image.Digest)
				if err != nil {
					logrus.Warnf("cannot save the image of %s: %s", runID, err)
				}
			}
			return persist(runID, result)
		},
	})

	return pipelineRunner.Run(context.Background(), runCtx, plan)
}

func (w *RunWorker) finishRun(runID string, status delivery.RunStatus, desc string, started int64) {
	logrus.Errorf("run %s: %s", runID, desc)
	err := w.store.UpdateRunStatus(runID, status.String(), desc, started, time.Now().Unix())
	if err != nil {
		logrus.Errorf("cannot update run status: %s", err)
	}
	w.broadcast(runID, streaming.RunStatusUpdatedEventString)
	w.notify(runID)
}

func (w *RunWorker) broadcast(runID string, event string) {
	if w.clientHub == nil {
		return
	}
	runModel, err := w.store.Run(runID)
	if err != nil {
		logrus.Warnf("cannot get run %s: %s", runID, err)
		return
	}
	run, err := runModel.AsDelivery()
	if err != nil {
		logrus.Warnf("cannot convert run for streaming: %s", err)
		return
	}
	streaming.BroadcastRunEvent(w.clientHub, event, run)
}

func (w *RunWorker) notify(runID string) {
	if w.notificationsManager == nil {
		return
	}
	runModel, err := w.store.Run(runID)
	if err != nil {
		logrus.Warnf("cannot get run %s: %s", runID, err)
		return
	}
	run, err := runModel.AsDelivery()
	if err != nil {
		logrus.Warnf("could not convert to notification %v", err)
		return
	}
	w.notificationsManager.Broadcast(notifications.MessageFromRun(run))
}

func loadSettings(workspace string, trigger *delivery.Trigger) (*delivery.Settings, error) {
	raw, err := os.ReadFile(filepath.Join(workspace, delivery.DefaultSettingsFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read %s: %s", delivery.DefaultSettingsFile, err)
	}

	settings, err := delivery.LoadSettings(raw)
	if err != nil {
		return nil, err
	}

	err = settings.ResolveVars(delivery.Vars(trigger))
	if err != nil {
		return nil, err
	}

	err = settings.Validate()
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func rollbackPlan(full *delivery.Plan) *delivery.Plan {
	deploy := full.Get(delivery.StageDeploy)
	if deploy == nil {
		return &delivery.Plan{}
	}
	return &delivery.Plan{Stages: []delivery.PlannedStage{
		{ID: delivery.StageDeploy, Timeout: deploy.Timeout},
	}}
}

func upsertResult(results []delivery.StageResult, result delivery.StageResult) []delivery.StageResult {
	for i := range results {
		if results[i].ID == result.ID {
			results[i] = result
			return results
		}
	}
	return append(results, result)
}
