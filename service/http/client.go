package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sigpatch/service"
	"time"
)

type Client struct {
	addr   string
	url    string
	client *http.Client
}

func NewClient(addr string) (*Client, error) {
	c := &Client{
		addr:   addr,
		url:    fmt.Sprintf("http://%s", addr),
		client: &http.Client{Timeout: time.Second * 30},
	}

	if !c.IsSigpatchServer() {
		return nil, fmt.Errorf("%s is not a sigpatch server", c.addr)
	}
	return c, nil
}

func (c *Client) Send(cmd service.CmdType, args string) (string, error) {
	resp, err := c.do(&doRequest{
		method: methodOf(cmd),
		path:   pathOf(cmd),
		expr:   fmt.Sprintf("%s %s", cmd, args),
	})
	if err != nil {
		return "", err
	}

	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("%s (status %d)", resp.Error, resp.Status)
	}

	return resp.Output, nil
}

func (c *Client) IsSigpatchServer() bool {
	if c.addr == "" {
		return false
	}

	resp, err := c.do(&doRequest{
		method: http.MethodGet,
		path:   pingPath,
	})
	if err != nil {
		return false
	}

	return resp.Status == http.StatusOK
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type doRequest struct {
	method string
	path   string
	header http.Header
	expr   string
}

func (c *Client) jsonHeader() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	return header
}

func (c *Client) do(req *doRequest) (resp *response, err error) {
	url := c.url + req.path

	exr := newExpression(req.expr, os.Getpid())
	bs, err := json.Marshal(exr)
	if err != nil {
		return
	}

	r, err := http.NewRequest(req.method, url, bytes.NewReader(bs))
	if err != nil {
		return
	}

	if req.header == nil {
		r.Header = c.jsonHeader()
	} else {
		r.Header = req.header
	}

	res, err := c.client.Do(r)
	if err != nil {
		return
	}
	defer res.Body.Close()

	bs, err = io.ReadAll(res.Body)
	if err != nil {
		return
	}

	err = json.Unmarshal(bs, &resp)
	return
}
