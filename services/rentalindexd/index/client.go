package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trustrent/core/types"
)

// NodeClient reads the committed event journal from a trustrentd node.
type NodeClient struct {
	endpoint string
	http     *http.Client
}

func NewNodeClient(endpoint string, timeout time.Duration) *NodeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NodeClient{endpoint: strings.TrimSpace(endpoint), http: &http.Client{Timeout: timeout}}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

type eventsPage struct {
	Events []types.JournalEntry `json:"events"`
	Head   uint64               `json:"head"`
}

// ListEvents returns up to limit journal entries after the given sequence and
// the node's current journal head.
func (c *NodeClient) ListEvents(ctx context.Context, after uint64, limit int) ([]types.JournalEntry, uint64, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "rental_listEvents",
		"params":  []interface{}{map[string]interface{}{"after": after, "limit": limit}},
	})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	var envelope struct {
		Result *eventsPage `json:"result"`
		Error  *rpcError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("decode node response: %w", err)
	}
	if envelope.Error != nil {
		return nil, 0, envelope.Error
	}
	if envelope.Result == nil {
		return nil, 0, fmt.Errorf("node response missing result")
	}
	return envelope.Result.Events, envelope.Result.Head, nil
}
