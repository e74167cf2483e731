package artifact

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
)

var artifactGetCmd = cli.Command{
	Name:      "get",
	Usage:     "Downloads an artifact file of a run",
	ArgsUsage: "<run-id> <name>",
	UsageText: `pizza artifact get 09625a4b-a37b-4657-80b8-25b7e44afa62 coverage.out \
     -o coverage.out \
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
			Usage:   "file to write the artifact to, stdout otherwise",
		},
	},
	Action: get,
}

func get(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")

	runID := c.Args().First()
	name := c.Args().Get(1)
	if runID == "" || name == "" {
		return fmt.Errorf("run id and artifact name are mandatory")
	}

	config := new(oauth2.Config)
	auth := config.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)
	contents, err := client.RunArtifactGet(runID, name)
	if err != nil {
		return err
	}

	outputPath := c.String("output")
	if outputPath != "" {
		err = os.WriteFile(outputPath, contents, 0666)
		if err != nil {
			return fmt.Errorf("cannot write file %s", err)
		}
		return nil
	}

	_, err = os.Stdout.Write(contents)
	return err
}
