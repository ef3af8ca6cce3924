package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ggoodman/hello-mcp/mcp"
	"github.com/invopop/jsonschema"
)

// UnknownToolError is the error string returned inside a tools/call result
// when no tool is registered under the requested name.
const UnknownToolError = "unknown tool"

// ToolHandler is the function signature used to handle a tool invocation. The
// returned string becomes the result's message; a returned error becomes the
// result's error field.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// StaticTool pairs an MCP tool descriptor with its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// HelloWorldTool is the built-in tool: it takes no arguments and answers with
// a fixed greeting.
func HelloWorldTool() StaticTool {
	return StaticTool{
		Descriptor: mcp.Tool{
			Name:        "hello_world",
			Description: "Return greeting",
		},
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "Hello, MCP!", nil
		},
	}
}

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description               string
	allowAdditionalProperties bool // default false (strict)
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolAllowAdditionalProperties controls whether unknown fields are allowed.
// When false (default), the generated schema sets additionalProperties=false and
// runtime decoding rejects unknown fields.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a StaticTool from a typed args struct A. The input schema
// is reflected from A with invopop/jsonschema and arguments are decoded into A
// before fn runs. A decoding failure is reported as the tool's error.
func NewTool[A any](name string, fn func(ctx context.Context, args A) (string, error), opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	input := reflectToMCPInputSchema[A](cfg.allowAdditionalProperties)
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: &input,
	}

	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var a A
		if len(raw) > 0 {
			dec := json.NewDecoder(bytes.NewReader(raw))
			if !cfg.allowAdditionalProperties {
				dec.DisallowUnknownFields()
			}
			if err := dec.Decode(&a); err != nil {
				return "", fmt.Errorf("invalid arguments: %v", err)
			}
		}
		return fn(ctx, a)
	}

	return StaticTool{Descriptor: desc, Handler: handler}
}

// reflectToMCPInputSchema reflects a Go type A into a jsonschema.Schema, and
// converts it to the simplified mcp.ToolInputSchema. Unknown field policy is
// surfaced via the AdditionalProperties flag on the returned schema.
func reflectToMCPInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	// Only object schemas map cleanly to MCP ToolInputSchema.
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// ToolsContainer owns a threadsafe set of tool descriptors and handlers. The
// set advertised in tools/list is listed in registration order.
type ToolsContainer struct {
	mu       sync.RWMutex
	tools    []mcp.Tool             // descriptors for listing
	handlers map[string]ToolHandler // name -> handler
}

// NewToolsContainer constructs a new ToolsContainer with the given tool definitions.
func NewToolsContainer(defs ...StaticTool) *ToolsContainer {
	st := &ToolsContainer{}
	st.Replace(defs...)
	return st
}

// Snapshot returns a copy of the current tool descriptors.
func (st *ToolsContainer) Snapshot() []mcp.Tool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]mcp.Tool, len(st.tools))
	copy(out, st.tools)
	return out
}

// Replace atomically replaces the entire tool set.
func (st *ToolsContainer) Replace(defs ...StaticTool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tools = make([]mcp.Tool, 0, len(defs))
	st.handlers = make(map[string]ToolHandler, len(defs))
	for _, d := range defs {
		if _, dup := st.handlers[d.Descriptor.Name]; dup {
			// last write wins on duplicate names
			for i := range st.tools {
				if st.tools[i].Name == d.Descriptor.Name {
					st.tools[i] = d.Descriptor
				}
			}
		} else {
			st.tools = append(st.tools, d.Descriptor)
		}
		st.handlers[d.Descriptor.Name] = d.Handler
	}
}

// Add registers a new tool if it doesn't duplicate an existing name.
// Returns true if added.
func (st *ToolsContainer) Add(def StaticTool) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.handlers == nil {
		st.handlers = make(map[string]ToolHandler)
	}
	name := def.Descriptor.Name
	if _, exists := st.handlers[name]; exists {
		return false
	}
	st.tools = append(st.tools, def.Descriptor)
	st.handlers[name] = def.Handler
	return true
}

// Remove removes a tool by name. Returns true if removed.
func (st *ToolsContainer) Remove(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	removed := false
	for _, t := range st.tools {
		if t.Name == name {
			removed = true
			continue
		}
		st.tools[n] = t
		n++
	}
	if removed {
		st.tools = st.tools[:n]
		delete(st.handlers, name)
	}
	return removed
}

// ListTools returns the tools/list result.
func (st *ToolsContainer) ListTools() mcp.ListToolsResult {
	return mcp.ListToolsResult{Tools: st.Snapshot()}
}

// Call dispatches a request to the named tool. Failures are reported in the
// result, never as a protocol error: an unregistered name yields
// UnknownToolError and a handler error yields its message.
func (st *ToolsContainer) Call(ctx context.Context, req *mcp.CallToolRequestReceived) mcp.CallToolResult {
	var h ToolHandler
	if req != nil {
		st.mu.RLock()
		h = st.handlers[req.Name]
		st.mu.RUnlock()
	}
	if h == nil {
		return mcp.CallToolResult{Error: UnknownToolError}
	}
	msg, err := h(ctx, req.Arguments)
	if err != nil {
		return mcp.CallToolResult{Error: err.Error()}
	}
	return mcp.CallToolResult{Message: msg}
}
