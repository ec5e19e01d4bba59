package mcp

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
)

// Schema is the JSON Schema advertised as a tool's inputSchema.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one tool argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Tool is a named operation exposed to MCP clients.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`

	call func(ctx context.Context, s *Server, args Arguments) (any, error)
}

// ArgumentError reports a missing or malformed tool argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %s: %s", e.Name, e.Reason)
}

// Arguments are the decoded arguments of a tool call.
type Arguments map[string]any

// String returns the named argument rendered as a string, or def when it is
// absent or blank.
func (a Arguments) String(name, def string) string {
	switch v := a[name].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

// Require returns a non-blank string argument.
func (a Arguments) Require(name string) (string, error) {
	v := a.String(name, "")
	if v == "" {
		return "", &ArgumentError{Name: name, Reason: "is required"}
	}
	return v, nil
}

// Int returns an integer argument, accepting JSON numbers and numeric
// strings. Absent values yield def.
func (a Arguments) Int(name string, def int) (int, error) {
	switch v := a[name].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &ArgumentError{Name: name, Reason: "must be an integer"}
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &ArgumentError{Name: name, Reason: "must be an integer"}
		}
		return n, nil
	}
	return 0, &ArgumentError{Name: name, Reason: "must be an integer"}
}

var tools = []Tool{
	{
		Name: "recall_query",
		Description: "Query logs using Recall Query Language. " +
			"Syntax: [text] [field:value]... [| command]. " +
			"Fields: level, env, commit, branch, service, host, session, request_id, since, until, data.* " +
			"Examples: 'level:error since:1h', 'data.user.id:123 level:error', 'since:24h | stats by:hour'",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", Description: "Query in Recall Query Language"},
				"limit": {Type: "integer", Description: "Max results (default 100)", Default: model.DefaultLimit},
			},
			Required: []string{"query"},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			q, err := args.Require("query")
			if err != nil {
				return nil, err
			}
			limit, err := args.Int("limit", model.DefaultLimit)
			if err != nil {
				return nil, err
			}
			return s.Query(ctx, q, limit)
		},
	},
	{
		Name:        "recall_errors",
		Description: "Get error and fatal logs. Quick way to see what's broken.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"since":  {Type: "string", Description: "Time range (default 1h)", Default: "1h"},
				"commit": {Type: "string", Description: "Filter by commit SHA"},
			},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			q := "level:error,fatal since:" + args.String("since", "1h")
			if c := args.String("commit", ""); c != "" {
				q += " commit:" + c
			}
			return s.Query(ctx, q, model.DefaultLimit)
		},
	},
	{
		Name:        "recall_stats",
		Description: "Get log statistics grouped by level, commit, environment, hour, or day.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"since": {Type: "string", Description: "Time range (default 24h)", Default: "24h"},
				"by":    {Type: "string", Description: "Group by: level, commit, environment, hour, day"},
			},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			q := "since:" + args.String("since", "24h") + " | stats"
			if by := args.String("by", ""); by != "" {
				q += " by:" + by
			}
			return s.Query(ctx, q, 0)
		},
	},
	{
		Name:        "recall_by_session",
		Description: "Get all logs for a specific session.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"session_id": {Type: "string", Description: "Session ID"},
			},
			Required: []string{"session_id"},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			id, err := args.Require("session_id")
			if err != nil {
				return nil, err
			}
			return s.Query(ctx, "session:"+quoteValue(id), model.DefaultSessionLimit)
		},
	},
	{
		Name:        "recall_request",
		Description: "Get all logs for a specific request.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"request_id": {Type: "string", Description: "Request ID"},
			},
			Required: []string{"request_id"},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			id, err := args.Require("request_id")
			if err != nil {
				return nil, err
			}
			return s.Query(ctx, "request_id:"+quoteValue(id), model.DefaultSessionLimit)
		},
	},
	{
		Name:        "recall_new_session",
		Description: "Create a new session ID. Use this to start fresh logging context.",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			return map[string]any{"session_id": model.NewSessionID()}, nil
		},
	},
	{
		Name:        "recall_clear_session",
		Description: "Delete all logs for a session. Use to clean up and start fresh.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"session_id": {Type: "string", Description: "Session ID to clear"},
			},
			Required: []string{"session_id"},
		},
		call: func(ctx context.Context, s *Server, args Arguments) (any, error) {
			id, err := args.Require("session_id")
			if err != nil {
				return nil, err
			}
			if s.sessions == nil {
				return nil, fmt.Errorf("session deletion not available")
			}
			n, err := s.sessions.DeleteSession(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("clear session %s: %w", id, err)
			}
			return map[string]any{"deleted": n, "session_id": id}, nil
		},
	},
}

// quoteValue wraps ids containing whitespace so they survive tokenising.
func quoteValue(v string) string {
	if strings.ContainsAny(v, " \t\n\"") {
		return `"` + strings.ReplaceAll(v, `"`, "") + `"`
	}
	return v
}

// QueryPayload renders an execution result the way the API and the tools
// return it: {"stats": ...} for stats queries, {"logs": [...], "count": n}
// otherwise.
func QueryPayload(res *rql.Result) map[string]any {
	if res.Aggregated() {
		return map[string]any{"stats": res.Stats}
	}
	return map[string]any{"logs": res.Records, "count": len(res.Records)}
}
