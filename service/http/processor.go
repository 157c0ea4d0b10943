package http

import (
	"errors"
	"fmt"
	"github.com/derekparker/trie"
	"net/http"
	e "sigpatch/error"
	"sigpatch/service"
	"sigpatch/utils"
)

const pingPath = "/sigpatch"

type Router struct {
	method string
	path   string
	fn     func(ctx *Context)
}

type processor struct {
	executor *service.Executor
	router   []*Router
	trie     *trie.Trie
}

func (p *processor) route(method, path string) func(ctx *Context) {
	node, found := p.trie.Find(utils.MD5(methodPath(method, path)))
	if found {
		fn := node.Meta().(func(ctx *Context))
		return fn
	}

	return nil
}

func (p *processor) worker(ctx *Context) {
	if ctx.answered() {
		return
	}

	req := ctx.request
	fn := p.route(req.method, req.path)
	if fn == nil {
		ctx.reject(http.StatusNotFound, "no route for %s %s", req.method, req.path)
		return
	}

	fn(ctx)
}

func newProcessor(x *service.Executor) *processor {
	proc := &processor{
		executor: x,
	}

	register(proc)
	return proc
}

// methodOf returns the HTTP method a command is served under: commands that
// change memory are POSTs.
func methodOf(cmd service.CmdType) string {
	switch cmd {
	case service.Patch, service.Detour, service.Restore, service.Repatch:
		return http.MethodPost
	}
	return http.MethodGet
}

func pathOf(cmd service.CmdType) string {
	return "/" + cmd.String()
}

func register(p *processor) {
	r := []*Router{
		{
			method: http.MethodGet,
			path:   pingPath,
			fn: func(ctx *Context) {
				ctx.ok("")
			},
		},
	}

	for _, cmd := range []service.CmdType{
		service.Scan,
		service.Patch,
		service.Detour,
		service.Restore,
		service.Repatch,
		service.List,
		service.Find,
		service.Status,
	} {
		r = append(r, &Router{
			method: methodOf(cmd),
			path:   pathOf(cmd),
			fn:     p.command(cmd),
		})
	}

	p.router = r

	t := trie.New()
	for _, router := range p.router {
		md5 := utils.MD5(methodPath(router.method, router.path))
		t.Add(md5, router.fn)
	}

	p.trie = t
}

func (p *processor) command(cmd service.CmdType) func(ctx *Context) {
	return func(ctx *Context) {
		name, args := ctx.expr.resolve()
		if name != cmd.String() {
			ctx.reject(http.StatusBadRequest, "expression %q does not match route %s", name, cmd)
			return
		}

		out, err := p.executor.Exec(cmd, args)
		if err != nil {
			ctx.fail(err)
			return
		}

		ctx.ok(out)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, e.InvalidArgs):
		return http.StatusBadRequest
	case errors.Is(err, e.NoMatch), errors.Is(err, e.PatchNotFound), errors.Is(err, e.ModuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ActionFailed), errors.Is(err, e.PartialRange):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func methodPath(method, path string) string {
	return fmt.Sprintf("%s:%s", method, path)
}
