/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package dispatcher is the Dispatcher (spec §3/§4.G): resolves a tool
// call by name, validates its arguments against a registered JSON Schema,
// invokes the handler (a planning handler or an applying handler), and
// serializes the result into the framed response envelope
// ({content: <plan>} for a dry-run plan, {content: <ExecutionResult>} for
// an apply). Grounded on the teacher's mcp/server.go AddTool loop
// (read in full): tool name, description, and InputSchema are registered
// together and wired once to *mcp.Server via
// github.com/modelcontextprotocol/go-sdk/mcp, the same dependency the
// teacher's own MCP server is built on. Argument validation is new
// relative to the teacher (its tools trust the SDK's own schema
// enforcement); spec §4.G requires the Dispatcher itself to reject
// malformed arguments as InvalidRequest before a handler ever runs, so
// every registered tool's schema is additionally compiled and checked
// with github.com/santhosh-tekuri/jsonschema/v5.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bennypowers/millwright/internal/corexerr"
	"github.com/bennypowers/millwright/internal/logging"
)

var log = logging.GetLogger().Named("dispatcher")

// Handler performs one tool call's work given its raw, not-yet-validated
// JSON arguments, returning a value that is serialized as the envelope's
// "content" field (a planmodel.Plan for a dry-run, an opqueue-driven
// ExecutionResult for an apply).
type Handler func(ctx context.Context, rawArgs json.RawMessage) (any, error)

// tool bundles a registered handler with its compiled argument schema.
type tool struct {
	name        string
	description string
	schema      *jsonschemav5.Schema
	schemaRaw   json.RawMessage
	handler     Handler
}

// Dispatcher resolves tool calls by name, per spec §4.G.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]*tool
}

// New builds an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{tools: make(map[string]*tool)}
}

// Register adds a tool under name, compiling schemaJSON (a JSON Schema
// document) once at registration time so a malformed schema fails fast
// rather than on every call.
func (d *Dispatcher) Register(name, description string, schemaJSON json.RawMessage, h Handler) error {
	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return corexerr.Wrap(corexerr.InvalidRequest, err, "compiling schema for tool %q", name)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return corexerr.Wrap(corexerr.InvalidRequest, err, "compiling schema for tool %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[name] = &tool{name: name, description: description, schema: schema, schemaRaw: schemaJSON, handler: h}
	return nil
}

// Names lists every registered tool name.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.tools))
	for n := range d.tools {
		names = append(names, n)
	}
	return names
}

// Envelope is the framed response wrapper from spec §4.G/§6.
type Envelope struct {
	Content any `json:"content"`
}

// Dispatch resolves name, validates rawArgs against its schema, invokes
// the handler with a deadline derived from timeout (spec §5's
// server.timeoutMs), and wraps a successful result in the response
// envelope. A zero timeout means no deadline is imposed beyond ctx's own.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage, timeout time.Duration) (Envelope, error) {
	requestID := uuid.NewString()
	log.Debug("dispatching tool %q (request %s)", name, requestID)

	d.mu.RLock()
	t, ok := d.tools[name]
	d.mu.RUnlock()
	if !ok {
		return Envelope{}, corexerr.New(corexerr.NotFound, "no tool registered with name %q", name)
	}

	if err := t.validate(rawArgs); err != nil {
		return Envelope{}, err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resultCh := make(chan struct {
		val any
		err error
	}, 1)
	go func() {
		val, err := t.handler(callCtx, rawArgs)
		resultCh <- struct {
			val any
			err error
		}{val, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return Envelope{}, r.err
		}
		return Envelope{Content: r.val}, nil
	case <-callCtx.Done():
		log.Warn("tool %q (request %s) exceeded its deadline", name, requestID)
		return Envelope{}, corexerr.Wrap(corexerr.Timeout, callCtx.Err(), "tool %q did not complete before its deadline", name)
	}
}

func (t *tool) validate(rawArgs json.RawMessage) error {
	if len(rawArgs) == 0 {
		rawArgs = []byte("{}")
	}
	var decoded any
	if err := json.Unmarshal(rawArgs, &decoded); err != nil {
		return corexerr.Wrap(corexerr.InvalidRequest, err, "tool %q arguments are not valid JSON", t.name)
	}
	if err := t.schema.Validate(decoded); err != nil {
		return corexerr.Wrap(corexerr.InvalidRequest, err, "tool %q arguments failed schema validation", t.name)
	}
	return nil
}

// ToMCPServer builds a *mcp.Server (github.com/modelcontextprotocol/go-sdk)
// exposing every registered tool, name and description verbatim, wired to
// Dispatch so the MCP transport layer and the Dispatcher's own validation/
// envelope logic are exercised on every call — mirroring the teacher's
// mcp/server.go setupTools loop, generalized from the teacher's
// once-per-process registry to this Dispatcher's dynamic tool map.
func (d *Dispatcher) ToMCPServer(name, version string, timeout time.Duration) (*gosdk.Server, error) {
	server := gosdk.NewServer(&gosdk.Implementation{Name: name, Version: version}, nil)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, t := range d.tools {
		t := t
		var schema jsonschema.Schema
		if err := json.Unmarshal(t.schemaRaw, &schema); err != nil {
			return nil, corexerr.Wrap(corexerr.Internal, err, "converting schema for tool %q to MCP's schema type", t.name)
		}

		handler := func(ctx context.Context, req *gosdk.CallToolRequest) (*gosdk.CallToolResult, error) {
			argsJSON, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				return nil, fmt.Errorf("marshaling arguments for tool %q: %w", t.name, err)
			}
			envelope, err := d.Dispatch(ctx, t.name, argsJSON, timeout)
			if err != nil {
				return &gosdk.CallToolResult{
					IsError: true,
					Content: []gosdk.Content{&gosdk.TextContent{Text: err.Error()}},
				}, nil
			}
			body, err := json.Marshal(envelope)
			if err != nil {
				return nil, fmt.Errorf("marshaling response envelope for tool %q: %w", t.name, err)
			}
			return &gosdk.CallToolResult{Content: []gosdk.Content{&gosdk.TextContent{Text: string(body)}}}, nil
		}

		server.AddTool(&gosdk.Tool{Name: t.name, Description: t.description, InputSchema: &schema}, handler)
	}
	return server, nil
}
