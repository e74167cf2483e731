package release

import "github.com/urfave/cli/v2"

var Command = cli.Command{
	Name:  "release",
	Usage: "Manages deployed releases",
	Subcommands: []*cli.Command{
		&releaseListCmd,
		&releaseRollbackCmd,
	},
}
