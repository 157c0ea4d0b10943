package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"os"
	"sigpatch/pkg/patcher"
	"sigpatch/utils"
)

var batchCmd = cli.Command{
	Name:      "batch",
	Usage:     "apply a JSON list of patch definitions to an ELF file, stopping at the first failure",
	ArgsUsage: "<elf-file> <definitions.json>",
	Flags:     withFlags(outFlag),
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 2, utils.ExactArgs, batchArgsCheck); err != nil {
			return err
		}

		return exec(Batch, context)
	},
}

func batchArgsCheck(args cli.Args) error {
	if err := fileArgsCheck(args); err != nil {
		return err
	}
	if !utils.FileExists(args.Get(1)) {
		return fmt.Errorf("%s is not a file", args.Get(1))
	}
	return nil
}

func loadDescriptors(path string) ([]patcher.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	defs, err := patcher.LoadDefinitions(f)
	if err != nil {
		return nil, err
	}
	return patcher.Compile(defs)
}

func (e *executor) batch() error {
	img, p, err := e.loadImage()
	if err != nil {
		return err
	}
	defer p.Close()

	ds, err := loadDescriptors(e.ctx.Args().Get(1))
	if err != nil {
		return err
	}

	if failed, err := p.Batch(ds...); err != nil {
		return fmt.Errorf("batch failed at %q: %v", failed, err)
	}
	fmt.Printf("applied %d descriptor(s)\n", len(ds))

	return e.writeImage(img, p)
}
