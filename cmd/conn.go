package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"sigpatch/utils"
	"time"
)

var connCmd = cli.Command{
	Name:      "conn",
	Usage:     "open a terminal on a running sigpatch control service",
	ArgsUsage: "<addr>",
	Flags:     withFlags(srvFlag),
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 1, utils.ExactArgs, connArgsCheck); err != nil {
			return err
		}

		return exec(Conn, context)
	},
}

func connArgsCheck(args cli.Args) error {
	addr := args.First()
	if utils.Telnet(addr, 5*time.Second) {
		return nil
	}

	return fmt.Errorf("invalid connection address: %s", addr)
}
