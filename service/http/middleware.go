package http

import (
	"encoding/json"
	"github.com/google/uuid"
	"io"
	"net/http"
	"sigpatch/utils"
	"time"
)

// maxBody bounds a command body; patterns and patch bytes are short.
const maxBody = 64 << 10

type Handler func(ctx *Context)

type HandlerChain []Handler

func httpHandlerChain(do Handler) HandlerChain {
	return []Handler{
		readRequest,
		readExpression,
		do,
		logExchange,
	}
}

func (h HandlerChain) exec(ctx *Context) {
	for _, handler := range h {
		handler(ctx)
	}
}

func readRequest(ctx *Context) {
	id := ctx.r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	ctx.request = &request{
		id:       id,
		method:   ctx.r.Method,
		url:      utils.GetFullURL(ctx.r),
		path:     ctx.r.URL.Path,
		clientIP: utils.GetClientIP(ctx.r),
	}

	bs, err := io.ReadAll(io.LimitReader(ctx.r.Body, maxBody+1))
	if err != nil {
		ctx.reject(http.StatusBadRequest, "read body: %v", err)
		return
	}
	if len(bs) > maxBody {
		ctx.reject(http.StatusRequestEntityTooLarge, "body exceeds %d bytes", maxBody)
		return
	}
	ctx.request.body = bs
}

func readExpression(ctx *Context) {
	if ctx.answered() {
		return
	}

	ctx.expr = new(Expression)
	if len(ctx.request.body) == 0 {
		return
	}
	if err := json.Unmarshal(ctx.request.body, ctx.expr); err != nil {
		ctx.reject(http.StatusBadRequest, "malformed expression: %v", err)
	}
}

func logExchange(ctx *Context) {
	req, res := ctx.request, ctx.reply
	if ctx.log == nil || req == nil || res == nil {
		return
	}

	elapsed := time.Since(ctx.started).Round(time.Microsecond)
	if res.Status != http.StatusOK {
		ctx.log.Warnf("%s %s %s from %s (pid %d): %d %s in %s",
			req.id, req.method, req.url, req.clientIP, ctx.expr.pid(), res.Status, res.Error, elapsed)
		return
	}
	ctx.log.Debugf("%s %s %s from %s (pid %d): %q -> %d bytes in %s",
		req.id, req.method, req.url, req.clientIP, ctx.expr.pid(), ctx.expr.Expr, len(res.Output), elapsed)
}
