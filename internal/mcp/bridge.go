package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// scannerInitBufSize is the initial buffer size for the stdio scanner (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize is the maximum request line the scanner will accept (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// Bridge relays newline-delimited JSON-RPC requests from an MCP client on
// stdio to a running server's /mcp/rpc endpoint.
type Bridge struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewBridge creates a bridge posting to rpcURL.
func NewBridge(rpcURL, apiKey string) *Bridge {
	return &Bridge{
		URL:    rpcURL,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Serve reads requests from r until EOF or ctx ends and writes one response
// line per request to w. Notifications are not forwarded and get no reply.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(errorResponse(nil, CodeParseError, "parse error")); err != nil {
				return err
			}
			continue
		}
		if len(req.ID) == 0 && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		resp, err := b.forward(ctx, line)
		if err != nil {
			resp = errorResponse(req.ID, CodeInternal, err.Error())
		}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (b *Bridge) forward(ctx context.Context, body []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("mcp bridge: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("mcp bridge: send: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("mcp bridge: read: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("mcp bridge: server returned %s", httpResp.Status)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("mcp bridge: unmarshal response: %w", err)
	}
	return resp, nil
}
