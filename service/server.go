package service

import (
	"net"
	"sigpatch/pkg/logflags"
)

// Server represents a server for a remote client
// to connect to.
type Server interface {
	Run() error
	Stop() error
	Addr() net.Addr
}

type ServerImpl struct {
	Logger   logflags.Logger
	Listener net.Listener
	Executor *Executor
}

func (si *ServerImpl) SetupLogger(srv string) {
	switch srv {
	case "grpc":
		si.Logger = logflags.GRPCLogger()
	case "http":
		fallthrough
	default:
		si.Logger = logflags.HTTPLogger()
	}
}

func (si *ServerImpl) Addr() net.Addr {
	return si.Listener.Addr()
}
