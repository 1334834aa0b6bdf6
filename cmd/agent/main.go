package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig  = "config"
	flagHistory = "history-file"
	flagLimit   = "limit"
)

func main() {
	app := &cli.App{
		Name:  "cordid",
		Usage: "track USB cable identity and negotiated link speed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"CORDID_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagHistory,
				Usage: "override the history file `PATH`",
			},
		},
		Action: runMonitor,
		Commands: []*cli.Command{
			{
				Name:   "monitor",
				Usage:  "watch the USB bus until interrupted",
				Action: runMonitor,
			},
			{
				Name:   "list",
				Usage:  "show connected USB devices with their stable identity and best known speed",
				Action: runList,
			},
			{
				Name:  "history",
				Usage: "show the device registry and recent events",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagLimit,
						Value: 20,
						Usage: "number of most recent events to show (0 for all)",
					},
				},
				Action: runHistory,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cordid:", err)
		os.Exit(1)
	}
}
