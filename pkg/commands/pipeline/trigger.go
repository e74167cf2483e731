package pipeline

import (
	"fmt"
	"os"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
)

var pipelineTriggerCmd = cli.Command{
	Name:  "trigger",
	Usage: "Triggers a pipeline run on the server",
	UsageText: `pizza pipeline trigger \
     --server http://pizzad.mycompany.com
     --token c012367f6e6f71de17ae4c6a7baac2e9`,
	Flags: append([]cli.Flag{
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
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "checkout to detect the trigger from",
			Value:   ".",
		},
	}, triggerFlags...),
	Action: trigger,
}

func trigger(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")

	t, err := resolveTrigger(c, c.String("path"))
	if err != nil {
		return err
	}
	err = t.Validate()
	if err != nil {
		return err
	}

	config := new(oauth2.Config)
	auth := config.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)
	runID, err := client.TriggerPost(t)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%v Run %s is queued for %s\n", emoji.WomanGesturingOk, runID, t.ShortSHA())
	fmt.Fprintf(os.Stderr, "Track it with:\npizza pipeline track %s\n\n", runID)

	return nil
}
