package pipeline

import (
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/urfave/cli/v2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/gitrepo"
)

// triggerFlags are shared by the commands that start a pipeline run
var triggerFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "repo",
		Usage: "repository the run is recorded for eg.: pizza-team/pizza-app, detected from the origin remote otherwise",
	},
	&cli.StringFlag{
		Name:  "sha",
		Usage: "full commit hash to run on, defaults to HEAD",
	},
	&cli.StringFlag{
		Name:  "branch",
		Usage: "branch of the commit, defaults to the checked out branch",
	},
	&cli.StringFlag{
		Name:  "tag",
		Usage: "git tag, makes this a tag event",
	},
	&cli.StringFlag{
		Name:  "event",
		Usage: "git event, push, tag or pr",
	},
}

// resolveTrigger builds the trigger from the flags, the checked out commit
// fills whatever the flags left empty. Callers validate, the local run
// tolerates a missing repository name where the server trigger does not.
func resolveTrigger(c *cli.Context, path string) (*delivery.Trigger, error) {
	flagged := &delivery.Trigger{
		Repo:   c.String("repo"),
		SHA:    c.String("sha"),
		Branch: c.String("branch"),
		Tag:    c.String("tag"),
	}

	var event *delivery.GitEvent
	if c.String("event") != "" {
		e, err := delivery.GitEventFromString(c.String("event"))
		if err != nil {
			return nil, fmt.Errorf("unknown event %s, use push, tag or pr", c.String("event"))
		}
		event = e
	}

	// explicit flags cover everything, no checkout needed
	if flagged.Repo != "" && flagged.SHA != "" && (flagged.Branch != "" || flagged.Tag != "") {
		if flagged.Tag != "" {
			flagged.Event = delivery.Tag
		}
		if event != nil {
			flagged.Event = *event
		}
		return flagged, nil
	}

	t, err := gitrepo.HeadTrigger(path, flagged.Repo)
	if err != nil {
		return nil, err
	}
	if t.Repo == "" {
		t.Repo = originRepoName(path)
	}

	// flags win over the checkout
	if flagged.SHA != "" && flagged.SHA != t.SHA {
		// HEAD's commit metadata does not describe another commit
		t.SHA = flagged.SHA
		t.AuthorName = ""
		t.AuthorEmail = ""
		t.Message = ""
	}
	if flagged.Branch != "" {
		t.Branch = flagged.Branch
	}
	if flagged.Tag != "" {
		t.Tag = flagged.Tag
		t.Event = delivery.Tag
	}
	if event != nil {
		t.Event = *event
	}

	return t, nil
}

// originRepoName derives the owner/name form from the origin remote,
// both the ssh and the https url forms are handled
func originRepoName(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}
	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}

	url := remote.Config().URLs[0]
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")
	url = strings.ReplaceAll(url, ":", "/")
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return ""
	}

	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
