package pipeline

import (
	"fmt"
	"os"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

var pipelineLintCmd = cli.Command{
	Name:      "lint",
	Usage:     "Lints a pipeline settings file",
	UsageText: `pizza pipeline lint -f .pizza.yaml`,
	Action:    lint,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "settings file to lint",
			Required: true,
		},
	},
}

func lint(c *cli.Context) error {
	settingsFile := c.String("file")
	raw, err := os.ReadFile(settingsFile)
	if err != nil {
		return fmt.Errorf("cannot read file %s", err)
	}

	err = delivery.Lint(raw)
	if err != nil {
		return err
	}

	settings, err := delivery.LoadSettings(raw)
	if err != nil {
		return err
	}

	err = settings.Validate()
	if err != nil {
		return err
	}

	err = delivery.NewPlan(settings).Validate()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%v %s is valid\n", emoji.CheckMark, settingsFile)
	return nil
}
