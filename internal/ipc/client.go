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
		return c.client.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Submit enqueues a job.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.call("Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves one job.
func (c *Client) Status(id string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue retrieves the queue overview.
func (c *Client) Queue() (*QueueResponse, error) {
	var resp QueueResponse
	if err := c.call("Queue", QueueRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List retrieves retained jobs.
func (c *Client) List(statuses ...string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateMetadata merges metadata into a job.
func (c *Client) UpdateMetadata(id string, metadata map[string]string) (*UpdateMetadataResponse, error) {
	var resp UpdateMetadataResponse
	if err := c.call("UpdateMetadata", UpdateMetadataRequest{ID: id, Metadata: metadata}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DaemonStatus retrieves runtime diagnostics.
func (c *Client) DaemonStatus() (*DaemonStatusResponse, error) {
	var resp DaemonStatusResponse
	if err := c.call("DaemonStatus", DaemonStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
