package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"sigpatch/pkg/logflags"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patcher"
	"sigpatch/service"
	"sigpatch/utils"
)

var selfCmd = cli.Command{
	Name:  "self",
	Usage: "serve patch commands against this process and open a terminal on it",
	Flags: withFlags(
		srvFlag,
		cli.StringFlag{
			Name:  "addr",
			Usage: "listen address of the control service",
			Value: defaultAddr,
		},
		cli.StringFlag{
			Name:  "defs",
			Usage: "JSON patch definitions to apply before serving",
		},
	),
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 0, utils.ExactArgs, nil); err != nil {
			return err
		}

		return exec(Self, context)
	},
}

func (e *executor) self() error {
	m, err := mem.NewSelf()
	if err != nil {
		return err
	}

	p := patcher.New(m, patcher.WithLogger(e.log))
	x := service.NewExecutor(p, logflags.PatcherLogger())
	defer func() {
		if err := x.Close(); err != nil {
			e.log.Errorf("restore on exit: %v", err)
		}
	}()

	if defs := e.ctx.String("defs"); defs != "" {
		ds, err := loadDescriptors(defs)
		if err != nil {
			return err
		}
		if failed, err := p.Batch(ds...); err != nil {
			return fmt.Errorf("batch failed at %q: %v", failed, err)
		}
	}

	server, err := e.serve(x)
	if err != nil {
		return err
	}
	defer server.Stop()

	fmt.Printf("serving %s on %s\n", e.ctx.String("srv"), server.Addr())
	return e.connect(server.Addr().String())
}
