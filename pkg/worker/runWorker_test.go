package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/notifications"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

const workerTestSHA = "ec8e4f5dcb2750789716594835d3f0fef89d6bcf"
const workerTestDigest = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

const workerTestSettings = `
app: pizza-app
deploy:
  manifest: deploy/app.yaml
`

type stubStage struct {
	id  delivery.StageID
	run func(ctx context.Context, runCtx *runner.Context) error
}

func (s *stubStage) ID() delivery.StageID {
	return s.id
}

func (s *stubStage) Run(ctx context.Context, runCtx *runner.Context) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx, runCtx)
}

type stageRecorder struct {
	mu  sync.Mutex
	ran []delivery.StageID
}

func (r *stageRecorder) record(id delivery.StageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, id)
}

func (r *stageRecorder) has(id delivery.StageID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ranID := range r.ran {
		if ranID == id {
			return true
		}
	}
	return false
}

type fakeWorkspace struct {
	dir     string
	err     error
	lastSHA string
	cleaned bool
}

func (f *fakeWorkspace) Workspace(sha string) (string, func(), error) {
	f.lastSHA = sha
	if f.err != nil {
		return "", nil, f.err
	}
	return f.dir, func() { f.cleaned = true }, nil
}

type notificationRecorder struct {
	messages []notifications.Message
}

func (r *notificationRecorder) Broadcast(msg notifications.Message) {
	r.messages = append(r.messages, msg)
}

func (r *notificationRecorder) AddProvider(provider notifications.Provider) {
}

func allStageIDs() []delivery.StageID {
	return []delivery.StageID{
		delivery.StageLint,
		delivery.StageRepoScan,
		delivery.StageUnitTests,
		delivery.StageBuildPush,
		delivery.StageImageScan,
		delivery.StageSign,
		delivery.StageDeploy,
	}
}

func passingStages(recorder *stageRecorder, image *delivery.ImageRef) []runner.Stage {
	stages := []runner.Stage{}
	for _, id := range allStageIDs() {
		id := id
		stages = append(stages, &stubStage{id: id, run: func(ctx context.Context, runCtx *runner.Context) error {
			recorder.record(id)
			if id == delivery.StageBuildPush {
				runCtx.Image = image
			}
			return nil
		}})
	}
	return stages
}

func enqueueRun(t *testing.T, s *store.Store) *model.Run {
	trigger := &delivery.Trigger{
		Repo:        "pizza-team/pizza-app",
		SHA:         workerTestSHA,
		Branch:      "main",
		Event:       delivery.Push,
		TriggeredBy: "jane",
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	run, err = s.CreateRun(run)
	assert.Nil(t, err)
	return run
}

func workspaceWith(t *testing.T, settings string) *fakeWorkspace {
	dir := t.TempDir()
	if settings != "" {
		err := os.WriteFile(filepath.Join(dir, delivery.DefaultSettingsFile), []byte(settings), 0666)
		assert.Nil(t, err)
	}
	return &fakeWorkspace{dir: dir}
}

func testImage() *delivery.ImageRef {
	return &delivery.ImageRef{
		Registry:   "registry.digitalocean.com",
		Repository: "pizza-registry",
		Name:       "pizza-app",
		Tag:        "ec8e4f5",
		Digest:     workerTestDigest,
	}
}

func Test_processRun(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	run := enqueueRun(t, s)
	workspace := workspaceWith(t, workerTestSettings)
	recorder := &stageRecorder{}
	image := testImage()
	notified := &notificationRecorder{}

	worker := NewRunWorker(s, workspace, nil, passingStages(recorder, image), notified, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunSuccess.String(), processed.Status)
	assert.Equal(t, 7, len(processed.Results))
	for _, result := range processed.Results {
		assert.Equal(t, delivery.StageSuccess, result.Status)
	}
	assert.Equal(t, image.String(), processed.Image)
	assert.Equal(t, workerTestDigest, processed.Digest)
	assert.True(t, processed.Started > 0)
	assert.True(t, processed.Finished >= processed.Started)

	assert.Equal(t, workerTestSHA, workspace.lastSHA)
	assert.True(t, workspace.cleaned)

	assert.Equal(t, 1, len(notified.messages))
	assert.Equal(t, "pizza-team/pizza-app", notified.messages[0].RepositoryName())
}

func Test_processRun_failingStageSkipsDependents(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	run := enqueueRun(t, s)
	workspace := workspaceWith(t, workerTestSettings)
	recorder := &stageRecorder{}

	stages := []runner.Stage{}
	for _, id := range allStageIDs() {
		id := id
		stages = append(stages, &stubStage{id: id, run: func(ctx context.Context, runCtx *runner.Context) error {
			recorder.record(id)
			if id == delivery.StageUnitTests {
				return errors.New("2 tests failed")
			}
			return nil
		}})
	}

	worker := NewRunWorker(s, workspace, nil, stages, nil, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunFailure.String(), processed.Status)
	assert.Empty(t, processed.Image)
	assert.False(t, recorder.has(delivery.StageBuildPush))
	assert.False(t, recorder.has(delivery.StageDeploy))

	byID := map[delivery.StageID]delivery.StageResult{}
	for _, result := range processed.Results {
		byID[result.ID] = result
	}
	assert.Equal(t, delivery.StageFailure, byID[delivery.StageUnitTests].Status)
	assert.Equal(t, delivery.StageSkipped, byID[delivery.StageBuildPush].Status)
	assert.Equal(t, delivery.StageSkipped, byID[delivery.StageDeploy].Status)
}

func Test_processRun_rollback(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	trigger := &delivery.Trigger{
		Repo:        "pizza-team/pizza-app",
		SHA:         workerTestSHA,
		Branch:      "main",
		Event:       delivery.Push,
		TriggeredBy: "operator",
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	run.Type = model.RunTypeRollback
	run.Image = "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5"
	run.Digest = workerTestDigest
	run, err = s.CreateRun(run)
	assert.Nil(t, err)

	workspace := workspaceWith(t, workerTestSettings)
	recorder := &stageRecorder{}

	var deployedImage string
	stages := []runner.Stage{}
	for _, id := range allStageIDs() {
		id := id
		stages = append(stages, &stubStage{id: id, run: func(ctx context.Context, runCtx *runner.Context) error {
			recorder.record(id)
			if id == delivery.StageDeploy {
				pinned, err := runCtx.Image.WithDigest()
				if err != nil {
					return err
				}
				deployedImage = pinned
			}
			return nil
		}})
	}

	worker := NewRunWorker(s, workspace, nil, stages, nil, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunSuccess.String(), processed.Status)
	assert.Equal(t, 1, len(processed.Results))
	assert.Equal(t, delivery.StageDeploy, processed.Results[0].ID)

	assert.True(t, recorder.has(delivery.StageDeploy))
	assert.False(t, recorder.has(delivery.StageLint))
	assert.False(t, recorder.has(delivery.StageBuildPush))

	assert.Equal(t, "registry.digitalocean.com/pizza-registry/pizza-app@"+workerTestDigest, deployedImage)
	assert.Equal(t, "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5", processed.Image)
}

func Test_processRun_rollbackWithoutDeploySettings(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	trigger := &delivery.Trigger{
		Repo:   "pizza-team/pizza-app",
		SHA:    workerTestSHA,
		Branch: "main",
		Event:  delivery.Push,
	}
	run, err := model.ToRun(trigger)
	assert.Nil(t, err)
	run.Type = model.RunTypeRollback
	run.Image = "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5"
	run, err = s.CreateRun(run)
	assert.Nil(t, err)

	worker := NewRunWorker(s, workspaceWith(t, ""), nil, nil, nil, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunFailure.String(), processed.Status)
	assert.Equal(t, "deploy is not configured at the target commit", processed.StatusDesc)
}

func Test_processRun_checkoutFailure(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	run := enqueueRun(t, s)
	workspace := &fakeWorkspace{err: errors.New("remote hung up")}

	worker := NewRunWorker(s, workspace, nil, nil, nil, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunFailure.String(), processed.Status)
	assert.Contains(t, processed.StatusDesc, "cannot check out")
}

func Test_processRun_brokenSettings(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	run := enqueueRun(t, s)
	workspace := workspaceWith(t, "app: [")

	worker := NewRunWorker(s, workspace, nil, nil, nil, nil, nil, nil)
	worker.processRun(run)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.Equal(t, delivery.RunFailure.String(), processed.Status)
	assert.Contains(t, processed.StatusDesc, "cannot parse settings")
}

func Test_processRun_recordsStartedStages(t *testing.T) {
	s := store.NewTest()
	defer func() {
		s.Close()
	}()

	run := enqueueRun(t, s)
	workspace := workspaceWith(t, workerTestSettings)

	// snapshot the stored results while the pipeline is mid-flight
	var midFlight []delivery.StageResult
	stages := []runner.Stage{}
	for _, id := range allStageIDs() {
		id := id
		stages = append(stages, &stubStage{id: id, run: func(ctx context.Context, runCtx *runner.Context) error {
			if id == delivery.StageBuildPush {
				stored, err := s.Run(runCtx.RunID)
				if err != nil {
					return err
				}
				midFlight = stored.Results
			}
			return nil
		}})
	}

	worker := NewRunWorker(s, workspace, nil, stages, nil, nil, nil, nil)
	worker.processRun(run)

	settled := 0
	for _, result := range midFlight {
		if result.Status == delivery.StageSuccess {
			settled++
		}
	}
	// lint, repo-scan and unit-tests are all settled before build-push starts
	assert.True(t, settled >= 3)

	processed, err := s.Run(run.ID)
	assert.Nil(t, err)
	assert.True(t, processed.Started > 0)
	assert.Equal(t, delivery.RunSuccess.String(), processed.Status)
}

func Test_upsertResult(t *testing.T) {
	results := []delivery.StageResult{}

	results = upsertResult(results, delivery.StageResult{ID: delivery.StageLint, Status: delivery.StageRunning})
	results = upsertResult(results, delivery.StageResult{ID: delivery.StageUnitTests, Status: delivery.StageRunning})
	results = upsertResult(results, delivery.StageResult{ID: delivery.StageLint, Status: delivery.StageSuccess})

	assert.Equal(t, 2, len(results))
	assert.Equal(t, delivery.StageSuccess, results[0].Status)
	assert.Equal(t, delivery.StageRunning, results[1].Status)
}

func Test_rollbackPlan(t *testing.T) {
	settings, err := delivery.LoadSettings([]byte(workerTestSettings))
	assert.Nil(t, err)

	plan := rollbackPlan(delivery.NewPlan(settings))
	assert.Equal(t, 1, len(plan.Stages))
	assert.Equal(t, delivery.StageDeploy, plan.Stages[0].ID)
	assert.Empty(t, plan.Stages[0].Needs)
	assert.Equal(t, 15*time.Minute, plan.Stages[0].Timeout)
}
