package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"sigpatch/pkg/patcher"
	"sigpatch/utils"
)

var outFlag = cli.StringFlag{
	Name:  "out, o",
	Usage: "write the patched file here instead of doing a dry run",
}

var patchCmd = cli.Command{
	Name:      "patch",
	Usage:     "write bytes at the first match of a pattern in an ELF file",
	ArgsUsage: "<elf-file> <pattern> <bytes>",
	Flags: withFlags(
		outFlag,
		cli.Int64Flag{
			Name:  "offset",
			Usage: "distance from the match start to the patch site",
		},
		cli.BoolFlag{
			Name:  "all",
			Usage: "patch every match instead of the first",
		},
	),
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 3, utils.ExactArgs, fileArgsCheck); err != nil {
			return err
		}

		return exec(Patch, context)
	},
}

func (e *executor) patch() error {
	img, p, err := e.loadImage()
	if err != nil {
		return err
	}
	defer p.Close()

	args := e.ctx.Args()
	def := patcher.Definition{
		Name:    "patch",
		Pattern: args.Get(1),
		Patch:   args.Get(2),
		Offset:  e.ctx.Int64("offset"),
		All:     e.ctx.Bool("all"),
	}
	d, err := def.Compile()
	if err != nil {
		return err
	}

	meta, err := p.MakePatch(d)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d patch(es)\n", meta.Len())

	return e.writeImage(img, p)
}
