package commands

import (
	"github.com/urfave/cli/v2"
)

// Run mounts a command group in a throwaway app and runs it.
// Tests invoke commands with the same argument vector the pizza binary gets.
func Run(command *cli.Command, args []string) error {
	app := &cli.App{
		Name:     "pizza",
		Commands: []*cli.Command{command},
	}
	return app.Run(args)
}
