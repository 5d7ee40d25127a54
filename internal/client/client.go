package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/markis/gh-scriptai/internal/config"
	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one streamed chat completion.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Provider turns a chat request into a stream of text deltas.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req Request) (stream.Source, error)
	Models(ctx context.Context) ([]string, error)
}

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

// New builds the provider selected by cfg.
func New(cfg config.Config, log *logrus.Entry) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllama(cfg, log), nil
	case config.ProviderChiven:
		return NewChiven(cfg, log), nil
	case config.ProviderCopilot:
		return NewCopilot(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newHTTPClient returns a client for streaming requests. The timeout bounds
// connection setup and response headers only, never the body of a long stream.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &http.Client{Transport: transport}
}

// send issues a request with an optional JSON body and checks the status.
// The caller owns the returned body.
func send(ctx context.Context, hc *http.Client, method, url string, headers map[string]string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return resp, nil
}

// getJSON decodes the response of a GET request into v.
func getJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, v any) error {
	resp, err := send(ctx, hc, http.MethodGet, url, headers, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
