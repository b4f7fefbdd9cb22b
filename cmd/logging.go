package cmd

import (
	"github.com/urfave/cli"

	"github.com/meshfire/meshfire/log"
)

var logger = log.New("meshfire")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
