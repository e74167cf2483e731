package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rvflash/elapsed"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
)

var pipelineListCmd = cli.Command{
	Name:  "list",
	Usage: "Lists pipeline runs",
	UsageText: `pizza pipeline list \
     --server http://pizzad.mycompany.com
     --token c012367f6e6f71de17ae4c6a7baac2e9`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "server",
			Usage:    "pizzad server URL, PIZZA_SERVER environment variable alternatively",
			EnvVars:  []string{"PIZZA_SERVER"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "token",
			Usage:    "pizzad server api token, PIZZA_TOKEN environment variable alternatively",
			EnvVars:  []string{"PIZZA_TOKEN"},
			Required: true,
		},
		&cli.StringFlag{
			Name:  "repo",
			Usage: "filter runs to a repository eg.: pizza-team/pizza-app",
		},
		&cli.StringFlag{
			Name:  "branch",
			Usage: "filter runs to a branch",
		},
		&cli.StringFlag{
			Name:  "event",
			Usage: "filter runs to a git event, push, tag or pr",
		},
		&cli.StringFlag{
			Name:  "sha",
			Usage: "filter runs to a full commit hash",
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "filter runs to a status eg.: success, failure",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "limit the number of returned runs",
		}, &cli.IntFlag{
			Name:  "offset",
			Usage: "offset the returned runs",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format, eg.: json",
		},
		&cli.BoolFlag{
			Name:    "reverse",
			Aliases: []string{"r"},
			Usage:   "reverse the chronological order of the displayed runs",
		},
	},
	Action: list,
}

func list(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")

	config := new(oauth2.Config)
	auth := config.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)

	var event *delivery.GitEvent
	if c.String("event") != "" {
		e, err := delivery.GitEventFromString(c.String("event"))
		if err != nil {
			return fmt.Errorf("unknown event %s, use push, tag or pr", c.String("event"))
		}
		event = e
	}

	limit := c.Int("limit")
	if limit == 0 {
		limit = 5
	}

	runs, err := client.RunsGet(
		c.String("repo"),
		c.String("branch"),
		event,
		c.String("sha"),
		c.String("status"),
		limit,
		c.Int("offset"),
	)
	if err != nil {
		return err
	}

	if c.String("output") == "json" {
		runsStr := bytes.NewBufferString("")
		e := json.NewEncoder(runsStr)
		e.SetIndent("", "  ")
		err = e.Encode(runs)
		if err != nil {
			return fmt.Errorf("cannot deserialize runs %s", err)
		}
		fmt.Println(runsStr)
	} else {
		if !c.Bool("reverse") { // by default the latest is the bottom of the output
			runs = reverse(runs)
		}
		for _, run := range runs {
			fmt.Print(RenderRun(run))
			fmt.Println()
		}
	}

	return nil
}

// RenderRun renders the one block summary of a run for terminal output
func RenderRun(run *delivery.Run) string {
	var sb strings.Builder

	blue := color.New(color.FgBlue, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	statusColor := gray
	switch run.Status {
	case delivery.RunSuccess:
		statusColor = green
	case delivery.RunUnstable:
		statusColor = yellow
	case delivery.RunFailure:
		statusColor = red
	}

	created := time.Unix(run.Created, 0)

	ref := run.Trigger.Branch
	if run.Trigger.Event == delivery.Tag {
		ref = run.Trigger.Tag
	}

	rollback := ""
	if run.Type == model.RunTypeRollback {
		rollback = "**ROLLBACK**"
	}

	sb.WriteString(fmt.Sprintf("%s %s %s %s %s\n",
		statusColor(run.Status.String()),
		blue(fmt.Sprintf("%s@%s", run.Trigger.Repo, ref)),
		gray(run.ID),
		red(rollback),
		green(fmt.Sprintf("(%s)", elapsed.Time(created))),
	))
	sb.WriteString(fmt.Sprintf("  %s - %s %s\n",
		red(run.Trigger.ShortSHA()),
		limitMessage(makeSingleLine(run.Trigger.Message)),
		blue(run.Trigger.AuthorName),
	))
	if run.Image != "" {
		sb.WriteString(fmt.Sprintf("  %s\n", gray(run.Image)))
	}

	return sb.String()
}

func makeSingleLine(message string) string {
	message = strings.ReplaceAll(message, "\n\n", "\n")
	message = strings.ReplaceAll(message, "\n", "; ")
	return message
}

func limitMessage(message string) string {
	if len(message) > 80 {
		message = message[0:79]
	}
	return message
}

func reverse(input []*delivery.Run) []*delivery.Run {
	if len(input) == 0 {
		return input
	}
	return append(reverse(input[1:]), input[0])
}
