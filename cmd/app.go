package cmd

import (
	"github.com/urfave/cli"
	"sigpatch/pkg/logflags"
)

const (
	usage = `sigpatch finds byte signatures in executable code and patches them,
             either in an ELF file on disk or inside a running sigpatch host`
)

var logFlags = []cli.Flag{
	cli.BoolFlag{
		Name:   "logFlag, f",
		Usage:  "enable debug logging",
		EnvVar: "SIGPATCH_LOG",
	},
	cli.StringFlag{
		Name:   "logStr, s",
		Usage:  "comma separated loggers to enable: patcher, http, grpc, terminal",
		Value:  "patcher",
		EnvVar: "SIGPATCH_LOG_STR",
	},
	cli.StringFlag{
		Name:   "logDesc, d",
		Usage:  "specify the log file path",
		Value:  logflags.DefaultLogDesc,
		EnvVar: "SIGPATCH_LOG_DEST",
	},
}

var srvFlag = cli.StringFlag{
	Name:  "srv",
	Usage: "control service transport: http or grpc",
	Value: "http",
}

func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = "sigpatch"
	app.Usage = usage
	app.Commands = []cli.Command{
		scanCmd,
		patchCmd,
		batchCmd,
		selfCmd,
		connCmd,
	}
	app.After = func(*cli.Context) error {
		logflags.Close()
		return nil
	}

	return app
}

func withFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag(nil), logFlags...), flags...)
}

func setupLogging(ctx *cli.Context) error {
	return logflags.Setup(ctx.Bool("logFlag"), ctx.String("logStr"), ctx.String("logDesc"))
}
