// Package scopectl is a command line tool for running the scope
// reconciliation handlers against real accounts from a workstation.
package scopectl

import (
	"github.com/alertlogic/scopesync/internal/build"
	"github.com/common-fate/clio"
	"github.com/urfave/cli/v2"
)

func GetCliApp() *cli.App {
	flags := []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Usage: "Log debug messages"},
		&cli.PathFlag{Name: "config", Usage: "Read settings from a TOML file", EnvVars: []string{"SCOPESYNC_CONFIG"}},
		&cli.PathFlag{Name: "env-file", Usage: "Load environment variables from a dotenv file"},
	}

	app := &cli.App{
		Flags:     flags,
		Name:      build.CLIBinaryName(),
		Usage:     "Reconcile monitoring deployment scope for AWS accounts",
		UsageText: build.CLIBinaryName() + " [global options] command [command options] [arguments...]",
		Version:   build.Version,
		Commands: []*cli.Command{
			&DispatchCommand,
			&DeploymentsCommand,
			&PolicyCommand,
			&DiscoverCommand,
			&SettingsCommand,
		},
		EnableBashCompletion: true,
		Before: func(c *cli.Context) error {
			clio.SetLevelFromEnv("SCOPESYNC_LOG")
			if c.Bool("verbose") {
				clio.SetLevelFromString("debug")
			}
			return nil
		},
	}

	return app
}
