package grpc

import (
	"context"
	"google.golang.org/grpc"
)

const (
	serviceName = "sigpatch.Control"
	execMethod  = "/" + serviceName + "/Exec"
	pingMethod  = "/" + serviceName + "/Ping"
)

type ExecRequest struct {
	Cmd  string `json:"cmd"`
	Args string `json:"args"`
	Pid  int    `json:"pid"`
}

type ExecReply struct {
	Output string `json:"output"`
}

type PingRequest struct{}

type PingReply struct {
	Pid int `json:"pid"`
}

type controlServer interface {
	Exec(ctx context.Context, in *ExecRequest) (*ExecReply, error)
	Ping(ctx context.Context, in *PingRequest) (*PingReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Exec",
			Handler:    execHandler,
		},
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sigpatch/control",
}

func execHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Exec(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: execMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).Exec(ctx, req.(*ExecRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pingMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}
