package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/meshfire/meshfire/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "meshfire"
	app.Usage = "ray-tracing queries over unstructured mesh volumes"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "fire",
			Usage: "fire demo rays through a box volume",
			Description: `
Register the demo box volume, fire one ray from its center through each face
and print the accepted hit distances and surfaces.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "backend, b",
					Value: "host",
					Usage: "ray tracing backend (host or opencl)",
				},
			},
			Action: cmd.FireRays,
		},
		{
			Name:  "locate",
			Usage: "locate points along the demo box diagonal in its elements",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "backend, b",
					Value: "host",
					Usage: "ray tracing backend (host or opencl)",
				},
				cli.IntFlag{
					Name:  "steps, n",
					Value: 8,
					Usage: "samples along the volume diagonal",
				},
			},
			Action: cmd.LocatePoints,
		},
	}

	app.Run(os.Args)
}
