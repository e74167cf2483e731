package delivery

import (
	"fmt"
	"time"
)

// StageID identifies one of the fixed pipeline stages
type StageID string

const (
	StageLint      StageID = "lint"
	StageRepoScan  StageID = "repo-scan"
	StageUnitTests StageID = "unit-tests"
	StageBuildPush StageID = "build-push"
	StageImageScan StageID = "image-scan"
	StageSign      StageID = "sign"
	StageDeploy    StageID = "deploy"
)

// PlannedStage is one node of the pipeline graph
type PlannedStage struct {
	ID    StageID   `json:"id"`
	Needs []StageID `json:"needs,omitempty"`
	// ContinueOnError stages report their failure but do not block dependent stages
	ContinueOnError bool          `json:"continueOnError,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

// Plan is the pipeline graph of a run. The stage set and its ordering is fixed,
// settings can only narrow it: there is no user defined graph.
type Plan struct {
	Stages []PlannedStage `json:"stages"`
}

// NewPlan builds the pipeline graph for the given settings.
//
// lint, repo-scan and unit-tests run first, independent of each other.
// build-push waits for all three, then image-scan, sign and deploy
// run serialized on the pushed image.
func NewPlan(settings *Settings) *Plan {
	plan := &Plan{
		Stages: []PlannedStage{
			{ID: StageLint, ContinueOnError: true, Timeout: 10 * time.Minute},
			{ID: StageRepoScan, ContinueOnError: true, Timeout: 15 * time.Minute},
			{ID: StageUnitTests, Timeout: 30 * time.Minute},
			{ID: StageBuildPush, Needs: []StageID{StageLint, StageRepoScan, StageUnitTests}, Timeout: 45 * time.Minute},
			{ID: StageImageScan, Needs: []StageID{StageBuildPush}, ContinueOnError: true, Timeout: 15 * time.Minute},
			{ID: StageSign, Needs: []StageID{StageImageScan}, Timeout: 5 * time.Minute},
		},
	}

	if settings == nil || settings.Deploy != nil {
		plan.Stages = append(plan.Stages, PlannedStage{
			ID:      StageDeploy,
			Needs:   []StageID{StageSign},
			Timeout: 15 * time.Minute,
		})
	}

	return plan
}

// Get returns the planned stage with the given id
func (p *Plan) Get(id StageID) *PlannedStage {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// Without removes a stage and every stage that transitively needs it
func (p *Plan) Without(id StageID) *Plan {
	dropped := map[StageID]bool{id: true}

	var kept []PlannedStage
	for _, stage := range p.Stages {
		if dropped[stage.ID] {
			continue
		}
		needsDropped := false
		for _, need := range stage.Needs {
			if dropped[need] {
				needsDropped = true
			}
		}
		if needsDropped {
			dropped[stage.ID] = true
			continue
		}
		kept = append(kept, stage)
	}

	return &Plan{Stages: kept}
}

// Validate checks the graph for dangling needs and duplicated stages
func (p *Plan) Validate() error {
	seen := map[StageID]bool{}
	for _, stage := range p.Stages {
		if seen[stage.ID] {
			return fmt.Errorf("stage %s is planned twice", stage.ID)
		}
		seen[stage.ID] = true
	}
	for _, stage := range p.Stages {
		for _, need := range stage.Needs {
			if !seen[need] {
				return fmt.Errorf("stage %s needs %s that is not part of the plan", stage.ID, need)
			}
		}
	}
	return nil
}
