package manifest

import "github.com/urfave/cli/v2"

var Command = cli.Command{
	Name:  "manifest",
	Usage: "Works with deploy manifests",
	Subcommands: []*cli.Command{
		&manifestRenderCmd,
	},
}
