package manifest

import (
	"fmt"
	"os"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/kube"
)

var manifestRenderCmd = cli.Command{
	Name:  "render",
	Usage: "Renders a deploy manifest the way the deploy stage does",
	UsageText: `pizza manifest render \
    -f deploy/app.yaml \
    --image registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5 \
    --deployment-name pizza-app \
    -o rendered.yaml`,
	Action: render,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "deploy manifest file to render",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "image",
			Usage:    "image reference to fill the <IMAGE> placeholder with",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "deployment-name",
			Usage:    "name to fill the <DEPLOYMENT_NAME> placeholder with",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output file",
		},
	},
}

func render(c *cli.Context) error {
	manifestFile := c.String("file")
	manifestString, err := os.ReadFile(manifestFile)
	if err != nil {
		return fmt.Errorf("cannot read file %s", err)
	}

	rendered, err := kube.Substitute(
		string(manifestString),
		c.String("image"),
		c.String("deployment-name"),
	)
	if err != nil {
		return err
	}

	// the deploy stage applies what it can decode, surface the same errors here
	objects, err := kube.Decode(rendered)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%v Deployment %s with %d service(s) parsed\n",
		emoji.CheckMark, objects.Deployment.Name, len(objects.Services))

	outputPath := c.String("output")
	if outputPath != "" {
		err := os.WriteFile(outputPath, []byte(rendered), 0666)
		if err != nil {
			return fmt.Errorf("cannot write the rendered manifest %s", err)
		}
	} else {
		fmt.Println(rendered)
	}

	return nil
}
