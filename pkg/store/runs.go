package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/russross/meddler"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store/sql"
)

// CreateRun stores a new pipeline run in the database
func (db *Store) CreateRun(run *model.Run) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.Created = time.Now().Unix()
	run.Status = delivery.RunQueued.String()
	if run.Type == "" {
		run.Type = model.RunTypeDelivery
	}
	return run, meddler.Insert(db, "runs", run)
}

// createRun stores a new pipeline run in the database, but it is able to fake the created date.
// Should be only used in tests
func (db *Store) createRun(run *model.Run, created int64) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.Created = created
	run.Status = delivery.RunQueued.String()
	if run.Type == "" {
		run.Type = model.RunTypeDelivery
	}
	return run, meddler.Insert(db, "runs", run)
}

// Run returns a pipeline run by id
func (db *Store) Run(id string) (*model.Run, error) {
	stmt := sql.Stmt(db.driver, sql.SelectRunByID)

	var data model.Run
	err := meddler.QueryRow(db, &data, stmt, id)
	return &data, err
}

// Runs returns all pipeline runs in the database within the given constraints
func (db *Store) Runs(
	repo, branch string,
	gitEvent *delivery.GitEvent,
	sha string,
	status string,
	limit, offset int) ([]*model.Run, error) {

	filters := []string{}
	args := []interface{}{}

	if repo != "" {
		filters = addFilter(filters, fmt.Sprintf("repository = $%d", len(filters)+1))
		args = append(args, repo)
	}
	if branch != "" {
		filters = addFilter(filters, fmt.Sprintf("branch = $%d", len(filters)+1))
		args = append(args, branch)
	}
	if sha != "" {
		filters = addFilter(filters, fmt.Sprintf("sha = $%d", len(filters)+1))
		args = append(args, sha)
	}
	if status != "" {
		filters = addFilter(filters, fmt.Sprintf("status = $%d", len(filters)+1))
		args = append(args, status)
	}

	// the event filter inlines its value, it must come after the numbered placeholders
	if gitEvent != nil {
		filters = addFilter(filters, fmt.Sprintf("event = %d", int(*gitEvent)))
	}

	if limit == 0 && offset == 0 {
		limit = 10
	}
	limitAndOffset := fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)

	query := fmt.Sprintf(`
SELECT id, type, created, started, finished, status, status_desc, blob, results, repository, branch, source_branch, target_branch, tag, event, sha, triggered_by, image, digest
FROM runs
%s
ORDER BY created desc
%s;`, strings.Join(filters, " "), limitAndOffset)

	var data []*model.Run
	err := meddler.QueryAll(db, &data, query, args...)
	return data, err
}

// UnprocessedRuns selects the queued runs, oldest first
func (db *Store) UnprocessedRuns() (runs []*model.Run, err error) {
	stmt := sql.Stmt(db.driver, sql.SelectUnprocessedRuns)
	err = meddler.QueryAll(db, &runs, stmt)
	return runs, err
}

// UpdateRunStatus updates a run status in the database
func (db *Store) UpdateRunStatus(id string, status string, desc string, started, finished int64) error {
	stmt := sql.Stmt(db.driver, sql.UpdateRunStatus)
	_, err := db.Exec(stmt, status, desc, started, finished, id)
	return err
}

// UpdateRunResults updates the per-stage results of a run in the database
func (db *Store) UpdateRunResults(id string, results []delivery.StageResult) error {
	resultsString, err := json.Marshal(results)
	if err != nil {
		return err
	}

	stmt := sql.Stmt(db.driver, sql.UpdateRunResults)
	_, err = db.Exec(stmt, string(resultsString), id)
	return err
}

// UpdateRunImage records the pushed image of a run in the database
func (db *Store) UpdateRunImage(id string, image string, digest string) error {
	stmt := sql.Stmt(db.driver, sql.UpdateRunImage)
	_, err := db.Exec(stmt, image, digest, id)
	return err
}

// LatestSuccessfulDeploy returns the most recent run of the repository
// that pushed an image and finished green, it is the rollback target
func (db *Store) LatestSuccessfulDeploy(repo string) (*model.Run, error) {
	stmt := sql.Stmt(db.driver, sql.SelectLatestSuccessfulDeploy)

	var data model.Run
	err := meddler.QueryRow(db, &data, stmt, repo)
	return &data, err
}

func addFilter(filters []string, filter string) []string {
	if len(filters) == 0 {
		return append(filters, "WHERE "+filter)
	}

	return append(filters, "AND "+filter)
}
