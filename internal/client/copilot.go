package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/markis/gh-scriptai/internal/config"
	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

// For more examples of using go-gh, see:
// https://github.com/cli/go-gh/blob/trunk/example_gh_test.go

const (
	APIBase   = "https://api.githubcopilot.com"
	GitHubAPI = "https://api.github.com"
)

// AuthorizationResponse represents the structure of the response from the GitHub API for authorization.
type AuthorizationResponse struct {
	Token string `json:"token"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Copilot streams chat completions from the GitHub Copilot API.
type Copilot struct {
	apiBase     string
	githubAPI   string
	oauthToken  func() (string, error)
	temperature float64
	http        *http.Client
	log         *logrus.Entry
}

// NewCopilot creates a Copilot provider. cfg.Token, when set, replaces the
// OAuth token lookup; cfg.Endpoint replaces the API base.
func NewCopilot(cfg config.Config, log *logrus.Entry) *Copilot {
	c := &Copilot{
		apiBase:     APIBase,
		githubAPI:   GitHubAPI,
		oauthToken:  githubOAuthToken,
		temperature: cfg.Temperature,
		http:        newHTTPClient(cfg.Timeout),
		log:         log,
	}
	if cfg.Endpoint != "" {
		c.apiBase = strings.TrimRight(cfg.Endpoint, "/")
	}
	if cfg.Token != "" {
		token := cfg.Token
		c.oauthToken = func() (string, error) { return token, nil }
	}
	return c
}

func (c *Copilot) Name() string { return config.ProviderCopilot }

// defaultHeaders returns the default headers for the API requests.
func defaultHeaders() map[string]string {
	return map[string]string{
		"Editor-Version":         "vscode/1.100.2",
		"Copilot-Integration-Id": "vscode-chat",
	}
}

// headers exchanges the OAuth token for a short lived Copilot bearer token.
func (c *Copilot) headers(ctx context.Context) (map[string]string, error) {
	token, err := c.oauthToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub token: %w", err)
	}

	headers := defaultHeaders()
	headers["Authorization"] = "Token " + token

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var auth AuthorizationResponse
	if err := getJSON(ctx, c.http, c.githubAPI+"/copilot_internal/v2/token", headers, &auth); err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if auth.Token == "" {
		return nil, errors.New("received empty token in response")
	}

	headers["Authorization"] = "Bearer " + auth.Token
	return headers, nil
}

// prepareInput builds the completion payload. o1 models reject the
// sampling and streaming parameters.
func prepareInput(req Request) map[string]any {
	payload := make(map[string]any, 6)
	payload["messages"] = req.Messages
	payload["model"] = req.Model

	if !strings.HasPrefix(req.Model, "o1") {
		payload["n"] = 1
		payload["top_p"] = 1
		payload["stream"] = true
		payload["temperature"] = req.Temperature
	}

	return payload
}

func (c *Copilot) Chat(ctx context.Context, req Request) (stream.Source, error) {
	headers, err := c.headers(ctx)
	if err != nil {
		return nil, err
	}
	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}

	resp, err := send(ctx, c.http, http.MethodPost, c.apiBase+"/chat/completions", headers, prepareInput(req))
	if err != nil {
		return nil, err
	}
	return newSSESource(resp.Body, c.log), nil
}

func (c *Copilot) Models(ctx context.Context) ([]string, error) {
	headers, err := c.headers(ctx)
	if err != nil {
		return nil, err
	}

	var list modelList
	if err := getJSON(ctx, c.http, c.apiBase+"/models", headers, &list); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
