// Package mcptest is a minimal MCP client speaking JSON-RPC over a
// worker's stdio. It exists for exercising skills from the CLI; the
// supervisor itself never interprets worker traffic.
package mcptest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
)

const protocolVersion = "2024-11-05"

// Client drives one MCP worker over line-delimited JSON-RPC. It is not
// safe for concurrent use; the CLI issues one request at a time.
type Client struct {
	w      io.Writer
	r      *bufio.Reader
	nextID atomic.Int64
}

// New wires a client to a worker's stdin/stdout streams.
func New(stdin io.Writer, stdout io.Reader) *Client {
	return &Client{w: stdin, r: bufio.NewReader(stdout)}
}

// Tool is one entry of a tools/list result.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Initialize performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcpskill", "version": "dev"},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	// The initialized notification has no id and expects no reply.
	return c.send(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
}

// ListTools returns the worker's advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("mcp: decode tools/list result: %w", err)
	}
	return out.Tools, nil
}

// CallTool invokes one tool and returns the raw result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	return c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	if err := c.send(rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}
	for {
		resp, err := c.read(ctx)
		if err != nil {
			return nil, err
		}
		// Skip server notifications and stale replies.
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *Client) send(req rpcRequest) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = c.w.Write(append(b, '\n'))
	return err
}

// read takes one line off the worker's stdout. The blocking read runs in
// its own goroutine so ctx can bound it; an abandoned read finishes (or
// leaks with the pipe) when the worker is torn down.
func (c *Client) read(ctx context.Context) (*rpcResponse, error) {
	type lineOrErr struct {
		line []byte
		err  error
	}
	ch := make(chan lineOrErr, 1)
	go func() {
		line, err := c.r.ReadBytes('\n')
		ch <- lineOrErr{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case lo := <-ch:
		if lo.err != nil {
			return nil, fmt.Errorf("mcp: read response: %w", lo.err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(lo.line, &resp); err != nil {
			return nil, fmt.Errorf("mcp: decode response: %w", err)
		}
		return &resp, nil
	}
}
