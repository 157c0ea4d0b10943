package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sigpatch/pkg/logflags"
	"time"
)

const requestIDHeader = "X-Sigpatch-Request"

// Context carries one control request through a HandlerChain.
type Context struct {
	log     logflags.Logger
	started time.Time
	expr    *Expression
	chain   HandlerChain
	request *request
	reply   *response
	r       *http.Request
	w       http.ResponseWriter
}

func newContext(log logflags.Logger, w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		log:     log,
		started: time.Now(),
		r:       r,
		w:       w,
	}
}

func (c *Context) answered() bool {
	return c.reply != nil
}

func (c *Context) ok(output string) {
	c.send(&response{Status: http.StatusOK, Output: output})
}

// fail answers with the status matching err's sentinel.
func (c *Context) fail(err error) {
	c.send(&response{Status: statusOf(err), Error: err.Error()})
}

func (c *Context) reject(status int, format string, args ...interface{}) {
	c.send(&response{Status: status, Error: fmt.Sprintf(format, args...)})
}

func (c *Context) send(res *response) {
	if c.answered() {
		return
	}
	c.reply = res

	if c.request != nil {
		c.w.Header().Set(requestIDHeader, c.request.id)
	}
	bs, err := json.Marshal(res)
	if err != nil {
		http.Error(c.w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.w.Header().Set("Content-Type", "application/json")
	c.w.WriteHeader(res.Status)
	c.w.Write(bs)
}
