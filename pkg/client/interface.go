package client

import (
	"net/http"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
)

// Client is used to communicate with the pizza delivery server.
type Client interface {
	// SetClient sets the http.Client.
	SetClient(*http.Client)

	// SetAddress sets the server address.
	SetAddress(string)

	// TriggerPost starts a pipeline run for a commit
	TriggerPost(trigger *delivery.Trigger) (string, error)

	// RunsGet returns the pipeline runs within the given constraints
	RunsGet(
		repo, branch string,
		event *delivery.GitEvent,
		sha string,
		status string,
		limit, offset int,
	) ([]*delivery.Run, error)

	// RunGet returns the run with the given id
	RunGet(id string) (*delivery.Run, error)

	// RunArtifactsGet lists the artifact files of a run
	RunArtifactsGet(id string) ([]artifact.Artifact, error)

	// RunArtifactGet downloads one artifact file of a run
	RunArtifactGet(id string, name string) ([]byte, error)

	// RollbackPost redeploys the image of an earlier successful run.
	// Either a run id or a repository - whose latest deploy is the target -
	// must be given.
	RollbackPost(repo string, runID string) (string, error)

	// StatusGet returns the queue depth and the latest run
	StatusGet() (*ServerStatus, error)

	// UserGet returns the user with the given login
	UserGet(login string) (*model.User, error)

	// UsersGet returns all users
	UsersGet() ([]*model.User, error)

	// UserPost creates a user and returns it with its api token
	UserPost(login string) (*model.User, error)

	// UserDelete removes the user with the given login
	UserDelete(login string) error
}

// ServerStatus is the response of the status endpoint
type ServerStatus struct {
	Status     string        `json:"status"`
	QueuedRuns int           `json:"queuedRuns"`
	LatestRun  *delivery.Run `json:"latestRun,omitempty"`
}
