package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const statusFields = "token,stdout,stderr,compile_output,message,status,time,memory"

// maxResponseBytes caps how much of a backend response body is read.
const maxResponseBytes = 8 << 20

// HTTPError is a non-2xx reply from an execution backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Body)
}

// ClientClass reports whether the backend rejected the request itself.
func (e *HTTPError) ClientClass() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client speaks the execution backend's submission API on one endpoint.
type Client struct {
	name       string
	baseURL    string
	authHeader string
	authToken  string
	http       *http.Client
}

// NewClient creates a client for one endpoint. Timeouts come from the caller's context.
func NewClient(cfg EndpointConfig, transport http.RoundTripper) *Client {
	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		authHeader: cfg.AuthHeader,
		authToken:  cfg.AuthToken,
		http:       &http.Client{Transport: transport},
	}
}

// Name identifies the endpoint in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// URL is the endpoint base URL recorded on jobs.
func (c *Client) URL() string {
	return c.baseURL
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionResponse struct {
	Token string `json:"token"`
}

type statusResponse struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int64  `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Submit creates a submission and returns its token.
func (c *Client) Submit(ctx context.Context, program string, languageID int, stdin string) (string, error) {
	body, err := json.Marshal(submissionRequest{
		SourceCode: base64.StdEncoding.EncodeToString([]byte(program)),
		LanguageID: languageID,
		Stdin:      base64.StdEncoding.EncodeToString([]byte(stdin)),
	})
	if err != nil {
		return "", fmt.Errorf("marshal submission failed: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, "/submissions?base64_encoded=true&wait=false", body)
	if err != nil {
		return "", err
	}
	var resp submissionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode submission response failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("backend returned an empty token")
	}
	return resp.Token, nil
}

// Get fetches the current status of a submission.
func (c *Client) Get(ctx context.Context, token string) (Status, error) {
	path := "/submissions/" + url.PathEscape(token) + "?base64_encoded=true&fields=" + statusFields
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Status{}, err
	}
	var resp statusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Status{}, fmt.Errorf("decode status response failed: %w", err)
	}
	status := Status{
		ID:          resp.Status.ID,
		Description: resp.Status.Description,
	}
	if resp.Time != nil {
		status.Time = *resp.Time
	}
	if resp.Memory != nil {
		status.MemoryKB = *resp.Memory
	}
	fields := []struct {
		src *string
		dst *string
	}{
		{resp.Stdout, &status.Stdout},
		{resp.Stderr, &status.Stderr},
		{resp.CompileOutput, &status.CompileOutput},
		{resp.Message, &status.Message},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		decoded, err := decodeField(*f.src)
		if err != nil {
			return Status{}, err
		}
		*f.dst = decoded
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" && c.authToken != "" {
		req.Header.Set(c.authHeader, c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	return data, nil
}

// decodeField decodes a base64 field. The backend wraps long values with newlines.
func decodeField(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode base64 field failed: %w", err)
	}
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// durationOr returns d, or fallback when d is not positive.
func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
