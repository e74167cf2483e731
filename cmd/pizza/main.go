package main

import (
	"fmt"
	"os"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/commands/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/commands/manifest"
	"github.com/sami-chanane/thesis-pizza-app/pkg/commands/pipeline"
	"github.com/sami-chanane/thesis-pizza-app/pkg/commands/release"
	"github.com/sami-chanane/thesis-pizza-app/pkg/version"
)

func main() {
	app := &cli.App{
		Name:                 "pizza",
		Version:              version.String(),
		Usage:                "the delivery pipeline of the pizza-app",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			&pipeline.Command,
			&manifest.Command,
			&release.Command,
			&artifact.Command,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", emoji.CrossMark, err.Error())
		os.Exit(1)
	}
}
