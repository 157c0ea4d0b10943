package grpc

import (
	"context"
	"fmt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"os"
	"sigpatch/service"
	"time"
)

type Client struct {
	addr    string
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}

	c := &Client{
		addr:    addr,
		conn:    conn,
		timeout: time.Second * 30,
	}

	if !c.IsSigpatchServer() {
		conn.Close()
		return nil, fmt.Errorf("%s is not a sigpatch server", addr)
	}
	return c, nil
}

func (c *Client) Send(cmd service.CmdType, args string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	in := &ExecRequest{Cmd: cmd.String(), Args: args, Pid: os.Getpid()}
	out := new(ExecReply)
	if err := c.conn.Invoke(ctx, execMethod, in, out); err != nil {
		if st, ok := status.FromError(err); ok {
			return "", fmt.Errorf("%s (%s)", st.Message(), st.Code())
		}
		return "", err
	}
	return out.Output, nil
}

func (c *Client) IsSigpatchServer() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(PingReply)
	return c.conn.Invoke(ctx, pingMethod, &PingRequest{}, out, grpc.WaitForReady(true)) == nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
