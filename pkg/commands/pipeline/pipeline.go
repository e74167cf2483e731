package pipeline

import "github.com/urfave/cli/v2"

var Command = cli.Command{
	Name:  "pipeline",
	Usage: "Runs and tracks delivery pipelines",
	Subcommands: []*cli.Command{
		&pipelineRunCmd,
		&pipelineTriggerCmd,
		&pipelineTrackCmd,
		&pipelineListCmd,
		&pipelineLintCmd,
	},
}
