package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"os"
	"sigpatch/pkg/scan"
	"sigpatch/utils"
	"strings"
)

var scanCmd = cli.Command{
	Name:      "scan",
	Usage:     "list every match of a byte pattern in an ELF file",
	ArgsUsage: "<elf-file> <pattern>",
	Flags: withFlags(
		cli.BoolFlag{
			Name:  "disasm",
			Usage: "decode the instructions at each match",
		},
	),
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 2, utils.MinArgs, fileArgsCheck); err != nil {
			return err
		}

		return exec(Scan, context)
	},
}

func fileArgsCheck(args cli.Args) error {
	if !utils.FileExists(args.First()) {
		return fmt.Errorf("%s is not a file", args.First())
	}
	return nil
}

func (e *executor) scan() error {
	img, p, err := e.loadImage()
	if err != nil {
		return err
	}

	// Unquoted patterns arrive as one argument per byte.
	pat, err := scan.Parse(strings.Join(e.ctx.Args().Tail(), " "))
	if err != nil {
		return err
	}

	matches, err := p.Scan("", pat)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no match for %s", pat)
	}

	utils.PrintMatches(os.Stdout, img, matches, img.Offset, e.ctx.Bool("disasm"))
	return nil
}
