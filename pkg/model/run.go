package model

import (
	"encoding/json"
	"fmt"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

const (
	// RunTypeDelivery is a full pipeline run
	RunTypeDelivery = "delivery"
	// RunTypeRollback redeploys the image of an earlier run, deploy stage only
	RunTypeRollback = "rollback"
)

// Run is the database representation of a pipeline run.
// The trigger travels as a blob, the fields the list queries
// filter on are denormalized into columns.
type Run struct {
	ID         string                 `json:"id" meddler:"id"`
	Type       string                 `json:"type" meddler:"type"`
	Created    int64                  `json:"created" meddler:"created"`
	Started    int64                  `json:"started,omitempty" meddler:"started"`
	Finished   int64                  `json:"finished,omitempty" meddler:"finished"`
	Status     string                 `json:"status" meddler:"status"`
	StatusDesc string                 `json:"statusDesc,omitempty" meddler:"status_desc"`
	Blob       string                 `json:"-" meddler:"blob"`
	Results    []delivery.StageResult `json:"results" meddler:"results,json"`

	// denormalized trigger fields
	Repository   string            `json:"repository" meddler:"repository"`
	Branch       string            `json:"branch,omitempty" meddler:"branch"`
	SourceBranch string            `json:"sourceBranch,omitempty" meddler:"source_branch"`
	TargetBranch string            `json:"targetBranch,omitempty" meddler:"target_branch"`
	Tag          string            `json:"tag,omitempty" meddler:"tag"`
	Event        delivery.GitEvent `json:"event" meddler:"event"`
	SHA          string            `json:"sha" meddler:"sha"`
	TriggeredBy  string            `json:"triggeredBy,omitempty" meddler:"triggered_by"`

	Image  string `json:"image,omitempty" meddler:"image"`
	Digest string `json:"digest,omitempty" meddler:"digest"`
}

// ToRun converts a trigger to its database representation
func ToRun(trigger *delivery.Trigger) (*Run, error) {
	triggerStr, err := json.Marshal(trigger)
	if err != nil {
		return nil, fmt.Errorf("cannot serialize trigger: %s", err)
	}

	return &Run{
		Type:         RunTypeDelivery,
		Blob:         string(triggerStr),
		Repository:   trigger.Repo,
		Branch:       trigger.Branch,
		SourceBranch: trigger.SourceBranch,
		TargetBranch: trigger.TargetBranch,
		Tag:          trigger.Tag,
		Event:        trigger.Event,
		SHA:          trigger.SHA,
		TriggeredBy:  trigger.TriggeredBy,
	}, nil
}

// Trigger deserializes the stored trigger
func (r *Run) Trigger() (*delivery.Trigger, error) {
	var trigger delivery.Trigger
	err := json.Unmarshal([]byte(r.Blob), &trigger)
	if err != nil {
		return nil, fmt.Errorf("cannot deserialize trigger: %s", err)
	}
	return &trigger, nil
}

// AsDelivery converts the row back to the API shape
func (r *Run) AsDelivery() (*delivery.Run, error) {
	trigger, err := r.Trigger()
	if err != nil {
		return nil, err
	}

	status, err := delivery.RunStatusFromString(r.Status)
	if err != nil {
		return nil, fmt.Errorf("run %s has an unknown status %q", r.ID, r.Status)
	}

	return &delivery.Run{
		ID:       r.ID,
		Type:     r.Type,
		Trigger:  *trigger,
		Status:   *status,
		Desc:     r.StatusDesc,
		Results:  r.Results,
		Image:    r.Image,
		Digest:   r.Digest,
		Created:  r.Created,
		Started:  r.Started,
		Finished: r.Finished,
	}, nil
}
