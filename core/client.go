package core

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const clientTimeout = 5 * time.Second

// Client sends single-shot requests to a running Server.
type Client struct {
	socketPath string
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Authenticate asks the server which bot signed initData.
func (c *Client) Authenticate(initData string) (Response, error) {
	payload, err := json.Marshal(AuthenticatePayload{InitData: initData})
	if err != nil {
		return Response{}, fmt.Errorf("encode payload: %w", err)
	}
	return c.do(Request{Version: CurrentVersion, Action: ActionAuthenticate, Payload: payload})
}

// Bots lists the bot names the server has registered.
func (c *Client) Bots() (Response, error) {
	return c.do(Request{Version: CurrentVersion, Action: ActionBots})
}

func (c *Client) do(req Request) (Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	conn, err := net.DialTimeout("unix", c.socketPath, clientTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(clientTimeout))

	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}
	// The server reads until EOF.
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
