// Package probe is a small websocket client that walks a server through the
// MCP handshake and a single tool call. It backs the `hellomcp probe`
// command.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/coder/websocket"
	"github.com/ggoodman/hello-mcp/internal/jsonrpc"
	"github.com/ggoodman/hello-mcp/mcp"
)

// ClientName identifies the probe in the initialize request.
const ClientName = "hellomcp-probe"

// Run dials url, performs initialize, notifications/initialized, tools/list
// and a hello_world tools/call, writing every response frame to out. It
// finishes with shutdown and waits for the server to close the connection.
func Run(ctx context.Context, url string, out io.Writer) error {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer c.CloseNow()

	p := &prober{c: c, out: out}

	if _, err := p.call(ctx, 1, mcp.InitializeMethod, mcp.InitializeRequest{
		ProtocolVersion: mcp.ProtocolVersion,
		ClientInfo:      mcp.ImplementationInfo{Name: ClientName, Version: mcp.ServerVersion},
	}); err != nil {
		return err
	}
	if err := p.send(ctx, nil, mcp.InitializedNotificationMethod, nil); err != nil {
		return err
	}
	if _, err := p.call(ctx, 2, mcp.ToolsListMethod, nil); err != nil {
		return err
	}

	res, err := p.call(ctx, 3, mcp.ToolsCallMethod, mcp.CallToolRequestSent{Name: "hello_world"})
	if err != nil {
		return err
	}
	var tr mcp.CallToolResult
	if err := json.Unmarshal(res.Result, &tr); err != nil {
		return fmt.Errorf("decode tools/call result: %w", err)
	}
	if tr.Error != "" {
		return fmt.Errorf("tools/call hello_world: %s", tr.Error)
	}

	if _, err := p.call(ctx, 4, mcp.ShutdownMethod, nil); err != nil {
		return err
	}

	// The server closes after answering shutdown.
	if _, _, err := c.Read(ctx); err != nil {
		if websocket.CloseStatus(err) != -1 || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("waiting for close: %w", err)
	}
	return errors.New("unexpected frame after shutdown")
}

type prober struct {
	c   *websocket.Conn
	out io.Writer
}

func (p *prober) send(ctx context.Context, id *jsonrpc.RequestID, method mcp.Method, params any) error {
	req, err := jsonrpc.NewRequest(id, string(method), params)
	if err != nil {
		return err
	}
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	if err := p.c.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// call sends a request and reads the next frame as its response.
func (p *prober) call(ctx context.Context, id int64, method mcp.Method, params any) (*jsonrpc.Response, error) {
	if err := p.send(ctx, jsonrpc.NewRequestID(id), method, params); err != nil {
		return nil, err
	}

	_, data, err := p.c.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("no response to %s: %w", method, err)
	}
	if _, err := fmt.Fprintf(p.out, "%s -> %s\n", method, data); err != nil {
		return nil, err
	}

	var res jsonrpc.Response
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, res.Error)
	}
	if got := res.ID.String(); got != fmt.Sprint(id) {
		return nil, fmt.Errorf("%s: response id %q, want %d", method, got, id)
	}
	return &res, nil
}
