package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/ggoodman/hello-mcp/internal/jsonrpc"
	"github.com/ggoodman/hello-mcp/mcp"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// handle sends a raw frame through Handle and decodes the response, if any.
func handle(t *testing.T, srv *Server, frame string) (*jsonrpc.Response, bool) {
	t.Helper()
	b, closeAfter := srv.Handle(context.Background(), []byte(frame))
	if b == nil {
		return nil, closeAfter
	}
	var any jsonrpc.AnyMessage
	if err := json.Unmarshal(b, &any); err != nil {
		t.Fatalf("decode response %s: %v", b, err)
	}
	if any.Type() != "response" {
		t.Fatalf("expected response, got %s", any.Type())
	}
	return any.AsResponse(), closeAfter
}

func decodeResult[T any](t *testing.T, res *jsonrpc.Response) T {
	t.Helper()
	if res.Error != nil {
		t.Fatalf("unexpected error response: %+v", res.Error)
	}
	var v T
	if err := json.Unmarshal(res.Result, &v); err != nil {
		t.Fatalf("decode result %s: %v", res.Result, err)
	}
	return v
}

func TestInitialize(t *testing.T) {
	srv := NewServer()
	res, closeAfter := handle(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
	if res == nil {
		t.Fatal("expected a response")
	}
	if closeAfter {
		t.Error("initialize must not close the connection")
	}
	if res.ID.Value() != int64(1) {
		t.Errorf("id: want 1, got %v", res.ID.Value())
	}

	got := decodeResult[mcp.InitializeResult](t, res)
	if got.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion: want 2024-11-05, got %q", got.ProtocolVersion)
	}
	if got.Capabilities.Tools == nil || got.Capabilities.Tools.ListChanged {
		t.Errorf("expected tools capability with listChanged=false, got %+v", got.Capabilities.Tools)
	}
	if got.ServerInfo.Name == "" {
		t.Error("serverInfo.name must not be empty")
	}
	if !bytes.Contains(res.Result, []byte(`"listChanged":false`)) {
		t.Errorf("listChanged must be serialized explicitly: %s", res.Result)
	}
}

func TestPingAndShutdown(t *testing.T) {
	srv := NewServer()

	for i := 0; i < 3; i++ {
		res, closeAfter := handle(t, srv, `{"jsonrpc":"2.0","id":"p","method":"ping"}`)
		if res == nil || string(res.Result) != "{}" {
			t.Fatalf("ping %d: want {} result, got %+v", i, res)
		}
		if closeAfter {
			t.Fatal("ping must not close the connection")
		}
	}

	res, closeAfter := handle(t, srv, `{"jsonrpc":"2.0","id":9,"method":"shutdown"}`)
	if res == nil || string(res.Result) != "{}" {
		t.Fatalf("shutdown: want {} result, got %+v", res)
	}
	if !closeAfter {
		t.Error("shutdown must close the connection")
	}
}

func TestToolsList(t *testing.T) {
	srv := NewServer()
	res, _ := handle(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if res == nil {
		t.Fatal("expected a response")
	}
	want := `{"tools":[{"name":"hello_world","description":"Return greeting"}]}`
	if string(res.Result) != want {
		t.Errorf("want %s, got %s", want, res.Result)
	}
}

func TestToolsCall(t *testing.T) {
	srv := NewServer()

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{
			name:  "hello_world",
			frame: `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"hello_world"}}`,
			want:  `{"message":"Hello, MCP!"}`,
		},
		{
			name:  "hello_world ignores arguments",
			frame: `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"hello_world","arguments":{"x":1}}}`,
			want:  `{"message":"Hello, MCP!"}`,
		},
		{
			name:  "unknown tool is a successful response",
			frame: `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nonexistent"}}`,
			want:  `{"error":"unknown tool"}`,
		},
		{
			name:  "missing params",
			frame: `{"jsonrpc":"2.0","id":3,"method":"tools/call"}`,
			want:  `{"error":"unknown tool"}`,
		},
		{
			name:  "params that are not an object",
			frame: `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":[1]}`,
			want:  `{"error":"unknown tool"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := handle(t, srv, tt.frame)
			if res == nil {
				t.Fatal("expected a response")
			}
			if res.Error != nil {
				t.Fatalf("expected success envelope, got error %+v", res.Error)
			}
			if string(res.Result) != tt.want {
				t.Errorf("want %s, got %s", tt.want, res.Result)
			}
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		id    string
	}{
		{name: "unregistered name", frame: `{"jsonrpc":"2.0","id":4,"method":"bogus"}`, id: "4"},
		{name: "numeric method", frame: `{"jsonrpc":"2.0","id":5,"method":7}`, id: "5"},
		{name: "object method", frame: `{"jsonrpc":"2.0","id":"x","method":{"name":"ping"}}`, id: "x"},
		{name: "missing method", frame: `{"jsonrpc":"2.0","id":8}`, id: "8"},
		{name: "non-string version", frame: `{"jsonrpc":2,"id":9,"method":"nope"}`, id: "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer()
			res, closeAfter := handle(t, srv, tt.frame)
			if res == nil || res.Error == nil {
				t.Fatalf("expected error response, got %+v", res)
			}
			if res.Error.Code != jsonrpc.ErrorCodeMethodNotFound || res.Error.Message != "Method not found" {
				t.Errorf("want -32601 Method not found, got %d %q", res.Error.Code, res.Error.Message)
			}
			if got := res.ID.String(); got != tt.id {
				t.Errorf("id: want %s, got %s", tt.id, got)
			}
			if res.Result != nil {
				t.Errorf("error response must not carry a result: %s", res.Result)
			}
			if closeAfter {
				t.Error("unknown method must not close the connection")
			}
		})
	}
}

func TestMethodMatchIsCaseSensitive(t *testing.T) {
	srv := NewServer()
	res, _ := handle(t, srv, `{"jsonrpc":"2.0","id":5,"method":"PING"}`)
	if res == nil || res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", res)
	}
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	srv := NewServer()
	for _, frame := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"initialized","params":{}}`,
		`{"jsonrpc":"2.0","id":null,"method":"notifications/initialized"}`,
	} {
		b, closeAfter := srv.Handle(context.Background(), []byte(frame))
		if b != nil || closeAfter {
			t.Errorf("%s: expected no response, got %s (close=%v)", frame, b, closeAfter)
		}
	}
}

func TestInitializedWithIDIsDispatched(t *testing.T) {
	srv := NewServer()
	res, _ := handle(t, srv, `{"jsonrpc":"2.0","id":6,"method":"initialized"}`)
	if res == nil || res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", res)
	}
}

func TestRequestWithoutIDGetsNullID(t *testing.T) {
	srv := NewServer()
	b, _ := srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping"}`))
	want := `{"jsonrpc":"2.0","id":null,"result":{}}`
	if string(b) != want {
		t.Errorf("want %s, got %s", want, b)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := NewServer()
	for _, frame := range []string{`{not json`, ``, `42`, `["ping"]`, `{"id":true,"method":"ping"}`} {
		b, closeAfter := srv.Handle(context.Background(), []byte(frame))
		if b != nil || closeAfter {
			t.Errorf("%q: expected frame to be dropped, got %s", frame, b)
		}
	}
}

func TestResponseEchoesStringID(t *testing.T) {
	srv := NewServer()
	res, _ := handle(t, srv, `{"jsonrpc":"2.0","id":"req-17","method":"ping"}`)
	if res.ID.String() != "req-17" {
		t.Errorf("id: want req-17, got %q", res.ID.String())
	}
}

func TestResponseEchoesNumericIDExactly(t *testing.T) {
	srv := NewServer()
	for _, id := range []string{`9007199254740993`, `12345678901234567890`, `-3`, `2.50`} {
		b, _ := srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":`+id+`,"method":"ping"}`))
		want := `{"jsonrpc":"2.0","id":` + id + `,"result":{}}`
		if string(b) != want {
			t.Errorf("want %s, got %s", want, b)
		}
	}
}

func TestWithTools(t *testing.T) {
	type echoArgs struct {
		Text string `json:"text"`
	}
	echo := NewTool("echo", func(_ context.Context, a echoArgs) (string, error) {
		return a.Text, nil
	}, WithToolDescription("Echo text"))

	srv := NewServer(WithTools(NewToolsContainer(HelloWorldTool(), echo)))

	res, _ := handle(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	list := decodeResult[mcp.ListToolsResult](t, res)
	if len(list.Tools) != 2 || list.Tools[1].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", list.Tools)
	}

	res, _ = handle(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	if want := `{"message":"hi"}`; string(res.Result) != want {
		t.Errorf("want %s, got %s", want, res.Result)
	}
}

func TestVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := NewServer(WithLogger(log))

	srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	srv.Handle(context.Background(), []byte(`{garbage`))

	out := buf.String()
	for _, want := range []string{"msg=received", `msg="sending response"`, `msg="dropping unparseable frame"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("missing %s in log output %q", want, out)
		}
	}
}

func TestConcurrentHandle(t *testing.T) {
	srv := NewServer()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := srv.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"hello_world"}}`))
			if !bytes.Contains(b, []byte("Hello, MCP!")) {
				t.Errorf("unexpected response %s", b)
			}
		}()
	}
	wg.Wait()
}

func TestOneSpanPerDispatchedRequest(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	srv := NewServer(WithTracer(tp.Tracer("test")))

	for _, f := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"hello_world"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
		`not json`,
	} {
		srv.Handle(context.Background(), []byte(f))
	}

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	wantNames := []string{"initialize", "tools/call", "nope"}
	for i, sp := range spans {
		if sp.Name() != wantNames[i] {
			t.Errorf("span %d: name %q, want %q", i, sp.Name(), wantNames[i])
		}
	}
	if spans[2].Status().Code != codes.Error {
		t.Errorf("unknown method span should be marked as error")
	}
}
