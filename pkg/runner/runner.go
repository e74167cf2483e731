package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

// Stage is one step of the pipeline
type Stage interface {
	ID() delivery.StageID
	Run(ctx context.Context, runCtx *Context) error
}

// Hooks observe the stage lifecycle. The worker persists results and
// broadcasts updates from them. Hook errors are logged, never fatal.
type Hooks struct {
	OnStageStart func(runID string, result delivery.StageResult) error
	OnStageDone  func(runID string, result delivery.StageResult) error
}

// Runner executes a plan, every ready stage in its own goroutine
type Runner struct {
	stages map[delivery.StageID]Stage
	hooks  Hooks
}

func NewRunner(stages []Stage, hooks Hooks) *Runner {
	byID := map[delivery.StageID]Stage{}
	for _, stage := range stages {
		byID[stage.ID()] = stage
	}
	return &Runner{
		stages: byID,
		hooks:  hooks,
	}
}

// Run executes the plan and returns the stage results with the derived
// run verdict.
//
// Stages whose needs are settled run concurrently. A failed blocking stage
// skips everything that depends on it. A failed continue-on-error stage
// settles its dependents, the chain continues. Canceling ctx lets running
// stages fail on their context and skips the unstarted rest.
func (r *Runner) Run(ctx context.Context, runCtx *Context, plan *delivery.Plan) ([]delivery.StageResult, delivery.RunStatus, string) {
	err := plan.Validate()
	if err != nil {
		return nil, delivery.RunFailure, err.Error()
	}

	resultCh := make(chan delivery.StageResult, len(plan.Stages))
	settled := map[delivery.StageID]delivery.StageResult{}
	started := map[delivery.StageID]bool{}
	running := 0
	canceled := false

	for len(settled) < len(plan.Stages) {
		if ctx.Err() != nil {
			canceled = true
		}

		progressed := false
		for _, planned := range plan.Stages {
			if started[planned.ID] {
				continue
			}

			if canceled {
				started[planned.ID] = true
				settled[planned.ID] = r.settle(runCtx, skippedResult(planned.ID, "run canceled"))
				progressed = true
				continue
			}

			blocker, ready := blockerOf(planned, plan, settled)
			if blocker != "" {
				started[planned.ID] = true
				settled[planned.ID] = r.settle(runCtx, skippedResult(planned.ID, blocker))
				progressed = true
				continue
			}
			if !ready {
				continue
			}

			stage, found := r.stages[planned.ID]
			if !found {
				started[planned.ID] = true
				settled[planned.ID] = r.settle(runCtx, delivery.StageResult{
					ID:         planned.ID,
					Status:     delivery.StageFailure,
					StatusDesc: fmt.Sprintf("no implementation registered for %s", planned.ID),
				})
				progressed = true
				continue
			}

			started[planned.ID] = true
			running++
			progressed = true
			r.stageStarted(runCtx, planned.ID)
			go r.runStage(ctx, runCtx, planned, stage, resultCh)
		}

		if len(settled) == len(plan.Stages) {
			break
		}

		if running == 0 {
			if progressed {
				continue
			}
			// needs form a cycle, Validate does not check ordering
			for _, planned := range plan.Stages {
				if !started[planned.ID] {
					started[planned.ID] = true
					settled[planned.ID] = r.settle(runCtx, skippedResult(planned.ID, "unreachable in the plan"))
				}
			}
			break
		}

		if canceled {
			result := <-resultCh
			running--
			settled[result.ID] = r.settle(runCtx, result)
			continue
		}

		select {
		case result := <-resultCh:
			running--
			settled[result.ID] = r.settle(runCtx, result)
		case <-ctx.Done():
			canceled = true
		}
	}

	results := make([]delivery.StageResult, 0, len(plan.Stages))
	for _, planned := range plan.Stages {
		if result, found := settled[planned.ID]; found {
			results = append(results, result)
		}
	}

	status, desc := delivery.DeriveStatus(plan, results)
	return results, status, desc
}

func (r *Runner) runStage(
	ctx context.Context,
	runCtx *Context,
	planned delivery.PlannedStage,
	stage Stage,
	resultCh chan<- delivery.StageResult,
) {
	result := delivery.StageResult{
		ID:      planned.ID,
		Started: time.Now().Unix(),
	}

	stageCtx := ctx
	if planned.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, planned.Timeout)
		defer cancel()
	}

	err := runSafely(stageCtx, runCtx, stage)
	result.Finished = time.Now().Unix()

	switch {
	case err == nil:
		result.Status = delivery.StageSuccess
	case stageCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		result.Status = delivery.StageFailure
		result.StatusDesc = fmt.Sprintf("deadline of %s exceeded", planned.Timeout)
	default:
		result.Status = delivery.StageFailure
		result.StatusDesc = err.Error()
	}

	result.Artifacts = runCtx.artifactsOf(planned.ID)
	result.Summary = runCtx.summaryOf(planned.ID)
	resultCh <- result
}

// runSafely keeps a panicking stage from taking down the process
func runSafely(ctx context.Context, runCtx *Context, stage Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return stage.Run(ctx, runCtx)
}

func (r *Runner) stageStarted(runCtx *Context, id delivery.StageID) {
	runCtx.Log.Infof("stage %s started", id)
	if r.hooks.OnStageStart == nil {
		return
	}
	err := r.hooks.OnStageStart(runCtx.RunID, delivery.StageResult{
		ID:      id,
		Status:  delivery.StageRunning,
		Started: time.Now().Unix(),
	})
	if err != nil {
		runCtx.Log.Warnf("cannot process the start of %s: %s", id, err)
	}
}

func (r *Runner) settle(runCtx *Context, result delivery.StageResult) delivery.StageResult {
	if result.StatusDesc != "" {
		runCtx.Log.Infof("stage %s %s: %s", result.ID, result.Status, result.StatusDesc)
	} else {
		runCtx.Log.Infof("stage %s %s", result.ID, result.Status)
	}
	if r.hooks.OnStageDone != nil {
		err := r.hooks.OnStageDone(runCtx.RunID, result)
		if err != nil {
			runCtx.Log.Warnf("cannot process the result of %s: %s", result.ID, err)
		}
	}
	return result
}

// blockerOf tells if the stage can start. A skipped need or a failed
// blocking need returns the reason the stage must be skipped for.
func blockerOf(
	planned delivery.PlannedStage,
	plan *delivery.Plan,
	settled map[delivery.StageID]delivery.StageResult,
) (string, bool) {
	for _, need := range planned.Needs {
		result, done := settled[need]
		if !done {
			return "", false
		}
		if result.Status == delivery.StageSkipped {
			return fmt.Sprintf("%s was skipped", need), false
		}
		if result.Status == delivery.StageFailure {
			needPlanned := plan.Get(need)
			if needPlanned != nil && !needPlanned.ContinueOnError {
				return fmt.Sprintf("%s failed", need), false
			}
		}
	}
	return "", true
}

func skippedResult(id delivery.StageID, desc string) delivery.StageResult {
	return delivery.StageResult{
		ID:         id,
		Status:     delivery.StageSkipped,
		StatusDesc: desc,
	}
}
