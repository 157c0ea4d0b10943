package grpc

import (
	"context"
	"errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"net"
	"os"
	e "sigpatch/error"
	"sigpatch/service"
)

type Server struct {
	service.ServerImpl
	grpcServer *grpc.Server
}

func NewServer(listener net.Listener, x *service.Executor) *Server {
	s := &Server{
		ServerImpl: service.ServerImpl{
			Listener: listener,
			Executor: x,
		},
	}
	s.SetupLogger("grpc")

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.logCalls))
	s.grpcServer.RegisterService(&serviceDesc, s)

	return s
}

func (s *Server) Run() error {
	go func() {
		if err := s.grpcServer.Serve(s.Listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.Logger.Errorf("grpc server: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	s.grpcServer.GracefulStop()
	return nil
}

func (s *Server) Exec(ctx context.Context, in *ExecRequest) (*ExecReply, error) {
	cmd, err := service.ParseCmd(in.Cmd)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out, err := s.Executor.Exec(cmd, in.Args)
	if err != nil {
		return nil, status.Error(codeOf(err), err.Error())
	}
	return &ExecReply{Output: out}, nil
}

func (s *Server) Ping(ctx context.Context, in *PingRequest) (*PingReply, error) {
	return &PingReply{Pid: os.Getpid()}, nil
}

func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	s.Logger.Debugf("call %s: %+v", info.FullMethod, req)
	resp, err := handler(ctx, req)
	if err != nil {
		s.Logger.Debugf("call %s failed: %v", info.FullMethod, err)
	}
	return resp, err
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, e.InvalidArgs):
		return codes.InvalidArgument
	case errors.Is(err, e.NoMatch), errors.Is(err, e.PatchNotFound), errors.Is(err, e.ModuleNotFound):
		return codes.NotFound
	case errors.Is(err, e.ActionFailed), errors.Is(err, e.PartialRange):
		return codes.FailedPrecondition
	}
	return codes.Internal
}
