package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type InferRequest struct {
	Backend     string    `json:"backend"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type inferResponse struct {
	Output *string `json:"output"`
}

// Client issues exactly one inference request per inbound turn. Empty output
// with a nil error means the model had nothing to say; any error means the
// turn must be dropped without an outbound send.
type Client interface {
	Infer(ctx context.Context, req InferRequest) (string, error)
}

type Metrics interface {
	IncrLLMRequest(ctx context.Context, backend, model string)
}

// RouterClient talks to the shared inference router. One attempt per call;
// retries belong to the surrounding queue layer, never here.
type RouterClient struct {
	BaseURL string
	Client  *http.Client
	metrics Metrics
}

func NewRouterClient(baseURL string, timeout time.Duration, metrics Metrics) *RouterClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RouterClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

func (c *RouterClient) Infer(ctx context.Context, req InferRequest) (string, error) {
	if c.metrics != nil {
		c.metrics.IncrLLMRequest(ctx, req.Backend, req.Model)
	}

	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := c.BaseURL + "/llm/infer"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("llm router: %s", msg)
	}

	var decoded inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llm router: decode response: %w", err)
	}
	if decoded.Output == nil {
		return "", nil
	}
	return *decoded.Output, nil
}
