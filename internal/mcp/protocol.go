package mcp

import "encoding/json"

// JSON-RPC 2.0 Method Reference
//
//   Method        Params                                  Result
//   ──────────    ──────────────────────────────────────   ─────────────────────────────────────
//   initialize    (ignored)                               {protocolVersion, capabilities, serverInfo}
//   tools/list    (none)                                  {tools: [{name, description, inputSchema}]}
//   tools/call    {name: string, arguments: object}        tool result, see tools.go
//   ping          (none)                                  {}
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32600  Invalid request (missing method)
//   -32601  Method not found
//   -32602  Invalid params (unknown tool, bad arguments)
//   -32603  Internal error (marshal failure)
//   -32000  Application error (query failure)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeApplication    = -32000
)

// ProtocolVersion is the MCP revision reported by initialize.
const ProtocolVersion = "2024-11-05"

// Request is a JSON-RPC 2.0 request. MCP clients send numeric or string
// ids, so the id is kept raw and echoed back unchanged.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

var nullID = json.RawMessage("null")

func errorResponse(id json.RawMessage, code int, msg string) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}
