package main

import (
	"os"

	"github.com/yndnr/nonceguard-go/internal/cli/command"
)

func main() {
	app := command.App()

	// Exit statuses from cli.Exit are handled inside Run.
	if err := app.Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
