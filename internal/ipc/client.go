package ipc

import (
	"encoding/json"
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

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit enqueues payload on the kind queue.
func (c *Client) Submit(kind string, payload json.RawMessage) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.call("Submit", SubmitRequest{Kind: kind, Payload: payload}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStatus returns counts for one queue.
func (c *Client) QueueStatus(kind string) (*QueueStatusResponse, error) {
	var resp QueueStatusResponse
	if err := c.call("QueueStatus", QueueRequest{Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns entries optionally filtered by statuses.
func (c *Client) QueueList(req QueueListRequest) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDrain runs a drain cycle now.
func (c *Client) QueueDrain(kind string) (*QueueDrainResponse, error) {
	var resp QueueDrainResponse
	if err := c.call("QueueDrain", QueueRequest{Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearSynced removes synced entries.
func (c *Client) QueueClearSynced(kind string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call("QueueClearSynced", QueueRequest{Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetainActive drops synced and failed entries.
func (c *Client) QueueRetainActive(kind string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call("QueueRetainActive", QueueRequest{Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove deletes one entry.
func (c *Client) QueueRemove(kind, id string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call("QueueRemove", QueueRemoveRequest{Kind: kind, ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns buffered log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
