package http

import "strings"

// Expression is the body of a command request: the command line as typed
// and the pid of the sender.
type Expression struct {
	Expr string `json:"expression"`
	Pid  int    `json:"pid"`
}

func newExpression(expr string, pid int) *Expression {
	return &Expression{Expr: expr, Pid: pid}
}

// resolve splits the expression into the command name and its argument
// string.
func (e *Expression) resolve() (string, string) {
	cmd, args, _ := strings.Cut(strings.TrimSpace(e.Expr), " ")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func (e *Expression) pid() int {
	if e == nil {
		return 0
	}
	return e.Pid
}
