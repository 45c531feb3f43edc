package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Submit enqueues a job.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Chimera.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Chimera.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats retrieves catalog aggregates.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Chimera.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList retrieves queued jobs.
func (c *Client) QueueList(req QueueListRequest) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Chimera.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry re-enqueues failed jobs.
func (c *Client) Retry(req RetryRequest) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Chimera.Retry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clear removes all jobs.
func (c *Client) Clear() (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.client.Call("Chimera.Clear", ClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves job-store diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Chimera.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discoveries lists discoveries.
func (c *Client) Discoveries(req DiscoveriesRequest) (*DiscoveriesResponse, error) {
	var resp DiscoveriesResponse
	if err := c.client.Call("Chimera.Discoveries", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feedback confirms or dismisses a discovery.
func (c *Client) Feedback(req FeedbackRequest) (*FeedbackResponse, error) {
	var resp FeedbackResponse
	if err := c.client.Call("Chimera.Feedback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
