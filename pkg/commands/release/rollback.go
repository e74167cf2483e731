package release

import (
	"context"
	"fmt"
	"os"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
)

var releaseRollbackCmd = cli.Command{
	Name:  "rollback",
	Usage: "Redeploys the image of an earlier successful run",
	UsageText: `pizza release rollback \
     --run 09625a4b-a37b-4657-80b8-25b7e44afa62 \
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
			Name:  "run",
			Usage: "rollback to the image of this run",
		},
		&cli.StringFlag{
			Name:  "repo",
			Usage: "rollback to the last deployed image of this repository eg.: pizza-team/pizza-app",
		},
	},
	Action: rollback,
}

func rollback(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")

	if c.String("run") == "" && c.String("repo") == "" {
		return fmt.Errorf("either --run or --repo is mandatory")
	}

	config := new(oauth2.Config)
	auth := config.Client(
		context.Background(),
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)
	runID, err := client.RollbackPost(
		c.String("repo"),
		c.String("run"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%v Rollback run %s is queued\n", emoji.WomanGesturingOk, runID)
	fmt.Fprintf(os.Stderr, "Track it with:\npizza pipeline track %s\n\n", runID)

	return nil
}
