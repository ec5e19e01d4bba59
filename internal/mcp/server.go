// Package mcp exposes the query engine as Model Context Protocol tools and
// dispatches JSON-RPC 2.0 requests onto them.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// ErrUnknownTool is returned by CallTool for a name not in the registry.
var ErrUnknownTool = errors.New("unknown tool")

// SessionDeleter removes every record of a session.
type SessionDeleter interface {
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

// Server runs MCP tools against a record source.
type Server struct {
	source   rql.Source
	sessions SessionDeleter
	exec     *rql.Executor
	now      func() time.Time
	version  string

	// MaxLimit caps the limit a tool call may request. Zero means
	// model.MaxLimit.
	MaxLimit int

	// OnQuery, when set, is called after every query a tool runs.
	OnQuery func(q *rql.Query, elapsed time.Duration, err error)
}

// NewServer creates a tool server. sessions may be nil, in which case
// recall_clear_session fails.
func NewServer(source rql.Source, sessions SessionDeleter, version string) *Server {
	return &Server{
		source:   source,
		sessions: sessions,
		exec:     rql.NewExecutor(),
		now:      time.Now,
		version:  version,
	}
}

// Tools returns the registered tools in a stable order.
func (s *Server) Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

func lookupTool(name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// CallTool runs the named tool. Unknown names yield ErrUnknownTool and bad
// arguments an *ArgumentError.
func (s *Server) CallTool(ctx context.Context, name string, args Arguments) (any, error) {
	t, ok := lookupTool(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = Arguments{}
	}
	return t.call(ctx, s, args)
}

// Query parses raw at the current time and executes it with the given
// limit, clamped to 1..MaxLimit.
func (s *Server) Query(ctx context.Context, raw string, limit int) (map[string]any, error) {
	maxLimit := s.MaxLimit
	if maxLimit <= 0 {
		maxLimit = model.MaxLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = model.DefaultLimit
	}

	q := rql.ParseAt(raw, s.now())
	start := time.Now()
	res, err := s.exec.Execute(ctx, s.source.View(), q, limit)
	if s.OnQuery != nil {
		s.OnQuery(q, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return QueryPayload(res), nil
}

// HandleRPC decodes one JSON-RPC request and dispatches it.
func (s *Server) HandleRPC(ctx context.Context, body []byte) Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error")
	}
	return s.Dispatch(ctx, req)
}

// Dispatch executes a decoded request.
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	id := req.ID
	if len(id) == 0 {
		id = nullID
	}
	resp := Response{JSONRPC: "2.0", ID: id}

	marshalResult := func(v any, err error) Response {
		if err != nil {
			return errorResponse(id, CodeApplication, err.Error())
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			return errorResponse(id, CodeInternal, merr.Error())
		}
		resp.Result = data
		return resp
	}

	switch req.Method {
	case "":
		return errorResponse(id, CodeInvalidRequest, "invalid request: missing method")

	case "initialize":
		return marshalResult(map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "recall", "version": s.version},
		}, nil)

	case "ping":
		return marshalResult(map[string]any{}, nil)

	case "tools/list":
		return marshalResult(map[string]any{"tools": s.Tools()}, nil)

	case "tools/call":
		var p struct {
			Name      string    `json:"name"`
			Arguments Arguments `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errorResponse(id, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
		result, err := s.CallTool(ctx, p.Name, p.Arguments)
		var argErr *ArgumentError
		switch {
		case errors.Is(err, ErrUnknownTool), errors.As(err, &argErr):
			return errorResponse(id, CodeInvalidParams, err.Error())
		}
		return marshalResult(result, err)
	}

	return errorResponse(id, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
}
