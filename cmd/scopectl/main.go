package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alertlogic/scopesync/pkg/scopectl"
	"github.com/common-fate/clio"
	"github.com/common-fate/clio/clierr"
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		os.Exit(130)
	}()

	app := scopectl.GetCliApp()
	err := app.Run(os.Args)
	if err != nil {
		// if the error is an instance of clierr.PrintCLIErrorer then print the error accordingly
		if cliError, ok := err.(clierr.PrintCLIErrorer); ok {
			cliError.PrintCLIError()
		} else {
			clio.Error(err.Error())
		}
		os.Exit(1)
	}
}
