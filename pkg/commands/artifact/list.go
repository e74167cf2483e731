package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
)

var artifactListCmd = cli.Command{
	Name:      "list",
	Usage:     "Lists the artifact files of a run",
	ArgsUsage: "<run-id>",
	UsageText: `pizza artifact list 09625a4b-a37b-4657-80b8-25b7e44afa62 \
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
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format, eg.: json",
		},
	},
	Action: list,
}

func list(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")

	runID := c.Args().First()
	if runID == "" {
		return fmt.Errorf("run id is mandatory")
	}

	config := new(oauth2.Config)
	auth := config.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)
	artifacts, err := client.RunArtifactsGet(runID)
	if err != nil {
		return err
	}

	if c.String("output") == "json" {
		artifactsStr := bytes.NewBufferString("")
		e := json.NewEncoder(artifactsStr)
		e.SetIndent("", "  ")
		err = e.Encode(artifacts)
		if err != nil {
			return fmt.Errorf("cannot deserialize artifacts %s", err)
		}
		fmt.Println(artifactsStr)
		return nil
	}

	for _, artifact := range artifacts {
		fmt.Printf("%10d  %s\n", artifact.Size, artifact.Name)
	}

	return nil
}
