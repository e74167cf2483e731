package release

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
	"github.com/sami-chanane/thesis-pizza-app/pkg/commands/pipeline"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

// deploy history is filtered from the recent runs, this many are looked at
const historyWindow = 100

var releaseListCmd = cli.Command{
	Name:  "list",
	Usage: "Lists the deployed releases",
	UsageText: `pizza release list \
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
			Usage: "filter releases to a repository eg.: pizza-team/pizza-app",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "limit the number of returned releases",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format, eg.: json",
		},
		&cli.BoolFlag{
			Name:    "reverse",
			Aliases: []string{"r"},
			Usage:   "reverse the chronological order of the displayed releases",
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

	runs, err := client.RunsGet(c.String("repo"), "", nil, "", "", historyWindow, 0)
	if err != nil {
		return err
	}

	releases := deployed(runs)

	limit := c.Int("limit")
	if limit == 0 {
		limit = 3
	}
	if len(releases) > limit {
		releases = releases[:limit]
	}

	if c.String("output") == "json" {
		releasesStr := bytes.NewBufferString("")
		e := json.NewEncoder(releasesStr)
		e.SetIndent("", "  ")
		err = e.Encode(releases)
		if err != nil {
			return fmt.Errorf("cannot deserialize releases %s", err)
		}
		fmt.Println(releasesStr)
	} else {
		if !c.Bool("reverse") { // by default the latest is the bottom of the output
			releases = reverse(releases)
		}
		for _, release := range releases {
			fmt.Print(pipeline.RenderRun(release))
			fmt.Println()
		}
	}

	return nil
}

// deployed keeps the runs whose deploy stage reached the cluster
func deployed(runs []*delivery.Run) []*delivery.Run {
	var releases []*delivery.Run
	for _, run := range runs {
		deploy := run.Result(delivery.StageDeploy)
		if deploy != nil && deploy.Status == delivery.StageSuccess {
			releases = append(releases, run)
		}
	}
	return releases
}

func reverse(input []*delivery.Run) []*delivery.Run {
	if len(input) == 0 {
		return input
	}
	return append(reverse(input[1:]), input[0])
}
