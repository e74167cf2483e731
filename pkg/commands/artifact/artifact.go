package artifact

import "github.com/urfave/cli/v2"

var Command = cli.Command{
	Name:  "artifact",
	Usage: "Fetches the files a pipeline run produced",
	Subcommands: []*cli.Command{
		&artifactListCmd,
		&artifactGetCmd,
	},
}
