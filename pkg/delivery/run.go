package delivery

import "fmt"

// StageResult is the recorded outcome of a single stage
type StageResult struct {
	ID         StageID     `json:"id"`
	Status     StageStatus `json:"status"`
	StatusDesc string      `json:"statusDesc,omitempty"`
	Started    int64       `json:"started,omitempty"`
	Finished   int64       `json:"finished,omitempty"`
	// Artifacts are file paths relative to the run's artifact folder
	Artifacts []string `json:"artifacts,omitempty"`
	// Summary holds stage specific payloads, scan verdicts and rollout info
	Summary map[string]interface{} `json:"summary,omitempty"`
}

// Run is one execution of the delivery pipeline
type Run struct {
	ID       string        `json:"id"`
	Type     string        `json:"type,omitempty"`
	Trigger  Trigger       `json:"trigger"`
	Status   RunStatus     `json:"status"`
	Desc     string        `json:"desc,omitempty"`
	Results  []StageResult `json:"results,omitempty"`
	Image    string        `json:"image,omitempty"`
	Digest   string        `json:"digest,omitempty"`
	Created  int64         `json:"created"`
	Started  int64         `json:"started,omitempty"`
	Finished int64         `json:"finished,omitempty"`
}

// Result returns the recorded result of a stage, nil if the stage did not report yet
func (r *Run) Result(id StageID) *StageResult {
	for i := range r.Results {
		if r.Results[i].ID == id {
			return &r.Results[i]
		}
	}
	return nil
}

// DeriveStatus computes the run verdict from the stage results.
//
// A failed blocking stage fails the run. A failed advisory stage
// keeps the run green but marks it unstable.
func DeriveStatus(plan *Plan, results []StageResult) (RunStatus, string) {
	status := RunSuccess
	desc := ""

	for _, result := range results {
		if result.Status != StageFailure && result.Status != StageSkipped {
			continue
		}

		planned := plan.Get(result.ID)
		if planned == nil {
			continue
		}

		if result.Status == StageFailure && planned.ContinueOnError {
			if status == RunSuccess {
				status = RunUnstable
				desc = fmt.Sprintf("%s failed", result.ID)
			}
			continue
		}

		if result.Status == StageFailure {
			return RunFailure, fmt.Sprintf("%s failed: %s", result.ID, result.StatusDesc)
		}
	}

	return status, desc
}
