package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sigpatch/service"
	"sync"
	"time"
)

type Server struct {
	service.ServerImpl
	httpServer *http.Server
	pool       sync.Pool
}

func NewServer(listener net.Listener, x *service.Executor) *Server {
	s := &Server{
		ServerImpl: service.ServerImpl{
			Listener: listener,
			Executor: x,
		},
		pool: sync.Pool{
			New: func() interface{} {
				return newProcessor(x)
			},
		},
	}
	s.SetupLogger("http")

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Run() error {
	go func() {
		if err := s.httpServer.Serve(s.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Errorf("http server: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := newContext(s.Logger, w, r)
	p := s.pool.Get().(*processor)
	defer s.pool.Put(p)

	ctx.chain = httpHandlerChain(p.worker)
	ctx.chain.exec(ctx)
}
