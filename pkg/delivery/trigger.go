package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver/v4"
)

var shaRegexp = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Trigger captures the git metadata a pipeline run is started with
type Trigger struct {
	Repo         string   `json:"repo"`
	SHA          string   `json:"sha"`
	Branch       string   `json:"branch,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	Event        GitEvent `json:"event"`
	SourceBranch string   `json:"sourceBranch,omitempty"`
	TargetBranch string   `json:"targetBranch,omitempty"`
	AuthorName   string   `json:"authorName,omitempty"`
	AuthorEmail  string   `json:"authorEmail,omitempty"`
	Message      string   `json:"message,omitempty"`
	TriggeredBy  string   `json:"triggeredBy,omitempty"`
	Created      int64    `json:"created,omitempty"`
}

// Validate makes sure the trigger holds enough information to run a pipeline on
func (t *Trigger) Validate() error {
	if t.Repo == "" {
		return fmt.Errorf("repo is mandatory")
	}
	if t.SHA == "" {
		return fmt.Errorf("sha is mandatory")
	}
	if !shaRegexp.MatchString(t.SHA) {
		return fmt.Errorf("sha must be a full 40 character commit hash, got %s", t.SHA)
	}
	if t.Event == Tag && t.Tag == "" {
		return fmt.Errorf("tag is mandatory on tag events")
	}
	if t.Event == PR && t.SourceBranch == "" {
		return fmt.Errorf("sourceBranch is mandatory on pr events")
	}
	return nil
}

// ImageTag derives the image tag for this trigger.
// Tag events tag the image with the git tag, it must be a semver version.
// Everything else gets the abbreviated commit hash.
func (t *Trigger) ImageTag() (string, error) {
	if t.Event == Tag {
		version := strings.TrimPrefix(t.Tag, "v")
		if _, err := semver.Parse(version); err != nil {
			return "", fmt.Errorf("tag %s is not a semver version: %s", t.Tag, err)
		}
		return t.Tag, nil
	}
	return t.ShortSHA(), nil
}

// ShortSHA returns the abbreviated commit hash
func (t *Trigger) ShortSHA() string {
	if len(t.SHA) < 7 {
		return t.SHA
	}
	return t.SHA[:7]
}
