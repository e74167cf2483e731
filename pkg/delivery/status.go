package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
)

// StageStatus is the lifecycle state of a single pipeline stage
type StageStatus int

const (
	// StageQueued stage is waiting for its dependencies to settle
	StageQueued StageStatus = iota
	// StageRunning stage is executing
	StageRunning
	// StageSuccess stage finished without an error
	StageSuccess
	// StageFailure stage finished with an error
	StageFailure
	// StageSkipped stage was not started because a dependency failed or the run was canceled
	StageSkipped
)

func (s StageStatus) String() string {
	return stageStatusToString[s]
}

var stageStatusToString = map[StageStatus]string{
	StageQueued:  "queued",
	StageRunning: "running",
	StageSuccess: "success",
	StageFailure: "failure",
	StageSkipped: "skipped",
}

var stageStatusToID = map[string]StageStatus{
	"queued":  StageQueued,
	"running": StageRunning,
	"success": StageSuccess,
	"failure": StageFailure,
	"skipped": StageSkipped,
}

// MarshalJSON marshals the enum as a quoted json string
func (s StageStatus) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(stageStatusToString[s])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON unmarshalls a quoted json string to the enum value
func (s *StageStatus) UnmarshalJSON(b []byte) error {
	var j string
	err := json.Unmarshal(b, &j)
	if err != nil {
		return err
	}
	*s = stageStatusToID[j]
	return nil
}

// RunStatus is the overall verdict of a pipeline run
type RunStatus int

const (
	// RunQueued run is persisted but no worker picked it up yet
	RunQueued RunStatus = iota
	// RunRunning a worker is executing the run
	RunRunning
	// RunSuccess every stage succeeded
	RunSuccess
	// RunUnstable every blocking stage succeeded, but an advisory stage failed
	RunUnstable
	// RunFailure a blocking stage failed or the run was aborted
	RunFailure
)

func (s RunStatus) String() string {
	return runStatusToString[s]
}

func RunStatusFromString(statusString string) (*RunStatus, error) {
	if status, ok := runStatusToID[statusString]; ok {
		return &status, nil
	}
	return nil, errors.New("wrong input")
}

var runStatusToString = map[RunStatus]string{
	RunQueued:   "queued",
	RunRunning:  "running",
	RunSuccess:  "success",
	RunUnstable: "unstable",
	RunFailure:  "failure",
}

var runStatusToID = map[string]RunStatus{
	"queued":   RunQueued,
	"running":  RunRunning,
	"success":  RunSuccess,
	"unstable": RunUnstable,
	"failure":  RunFailure,
}

// MarshalJSON marshals the enum as a quoted json string
func (s RunStatus) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(runStatusToString[s])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON unmarshalls a quoted json string to the enum value
func (s *RunStatus) UnmarshalJSON(b []byte) error {
	var j string
	err := json.Unmarshal(b, &j)
	if err != nil {
		return err
	}
	*s = runStatusToID[j]
	return nil
}

// Finished tells if the status is terminal
func (s RunStatus) Finished() bool {
	return s == RunSuccess || s == RunUnstable || s == RunFailure
}
