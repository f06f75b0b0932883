// Package app contains the countergo command application.
package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/dankorotin/countergo/cli/server"
	"github.com/dankorotin/countergo/cli/shell"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "countergo\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a countergo instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "countergo"
	ctl.Version = config.Version
	ctl.Usage = "Counter contract node"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, shell.NewCommands()...)
	return ctl
}
