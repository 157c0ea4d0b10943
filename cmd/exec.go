package cmd

import (
	"fmt"
	"github.com/urfave/cli"
	"net"
	"os"
	"sigpatch/pkg/logflags"
	"sigpatch/pkg/mem"
	"sigpatch/pkg/patcher"
	"sigpatch/pkg/terminal"
	"sigpatch/service"
	"sigpatch/service/grpc"
	"sigpatch/service/http"
)

type ExecType int

const (
	Scan ExecType = iota
	Patch
	Batch
	Self
	Conn
)

const (
	defaultAddr = "127.0.0.1:0"
)

type executor struct {
	et  ExecType
	ctx *cli.Context
	log logflags.Logger
}

func exec(et ExecType, ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	ex := &executor{
		et:  et,
		ctx: ctx,
		log: logflags.PatcherLogger(),
	}
	return ex.run()
}

func (e *executor) run() error {
	switch e.et {
	case Scan:
		return e.scan()
	case Patch:
		return e.patch()
	case Batch:
		return e.batch()
	case Self:
		return e.self()
	case Conn:
		return e.connect(e.ctx.Args().First())
	}

	return nil
}

// loadImage opens the ELF file named by the first argument.
func (e *executor) loadImage() (*mem.Image, *patcher.Patcher, error) {
	img, err := mem.LoadImage(e.ctx.Args().First())
	if err != nil {
		return nil, nil, err
	}
	return img, patcher.New(img, patcher.WithLogger(e.log)), nil
}

// writeImage saves the patched image to --out, or prints what would change
// when no output file is given.
func (e *executor) writeImage(img *mem.Image, p *patcher.Patcher) error {
	out := e.ctx.String("out")
	if out == "" {
		for _, pt := range p.Registry().All().Patches() {
			off, _ := img.Offset(pt.Site())
			fmt.Printf("%s (file 0x%x): % X -> % X\n", pt.Site(), off, pt.Original(), pt.Data())
		}
		fmt.Println("dry run, pass --out to write the patched file")
		return nil
	}

	fi, err := os.Stat(e.ctx.Args().First())
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, img.File(), fi.Mode().Perm()); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d patches)\n", out, p.Registry().Len())
	return nil
}

// serve starts the control service for x on a loopback port.
func (e *executor) serve(x *service.Executor) (service.Server, error) {
	listener, err := net.Listen("tcp", e.ctx.String("addr"))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	var server service.Server
	switch e.ctx.String("srv") {
	case "grpc":
		server = grpc.NewServer(listener, x)
	case "http":
		server = http.NewServer(listener, x)
	default:
		listener.Close()
		return nil, fmt.Errorf("unknown service type %q", e.ctx.String("srv"))
	}

	if err := server.Run(); err != nil {
		return nil, err
	}
	return server, nil
}

func (e *executor) connect(addr string) (err error) {
	var client service.Client
	switch e.ctx.String("srv") {
	case "grpc":
		client, err = grpc.NewClient(addr)
	case "http":
		fallthrough
	default:
		client, err = http.NewClient(addr)
	}
	if err != nil {
		return
	}
	defer client.Close()

	term := terminal.New(client)
	return term.Run()
}
