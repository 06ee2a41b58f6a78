package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/almatool/alma/internal/cmd"
	"github.com/almatool/alma/internal/version"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "alma"
	app.Usage = "provision and maintain a mutable Arch Linux installation on removable media"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "ALMA authors"}}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, EnvVars: []string{"ALMA_DEBUG"}},
	}
	app.Commands = cmd.Commands

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(os.Args) }()

	select {
	case <-interrupted:
		// pkg/resource's own signal handler unwinds every active pipeline's
		// resource stack; this process-level exit code just reports that a
		// cancellation was the cause.
		os.Exit(130)
	case err := <-errCh:
		if err != nil {
			fmt.Fprintln(os.Stderr, "alma:", err)
			os.Exit(1)
		}
	}
}
