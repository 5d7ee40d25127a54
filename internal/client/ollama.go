package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/markis/gh-scriptai/internal/config"
	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

const (
	OllamaEndpoint = "http://localhost:11434/api"
	ChivenEndpoint = "http://127.0.0.1:8082/api/ai"
)

type chatPayload struct {
	Key         string         `json:"key,omitempty"`
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature float64        `json:"temperature"`
	Options     map[string]any `json:"options,omitempty"`
}

type tagList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NDJSON talks to Ollama compatible endpoints that stream one JSON object
// per line. Ollama itself and the chiven gateway share this wire format.
type NDJSON struct {
	name        string
	endpoint    string
	token       string
	key         string
	temperature float64
	http        *http.Client
	log         *logrus.Entry
}

// NewOllama returns a provider for a local Ollama server.
func NewOllama(cfg config.Config, log *logrus.Entry) *NDJSON {
	return newNDJSON(config.ProviderOllama, OllamaEndpoint, cfg, log)
}

// NewChiven returns a provider for the chiven gateway, which authenticates
// with a raw Authorization token and a key field in the body.
func NewChiven(cfg config.Config, log *logrus.Entry) *NDJSON {
	return newNDJSON(config.ProviderChiven, ChivenEndpoint, cfg, log)
}

func newNDJSON(name, endpoint string, cfg config.Config, log *logrus.Entry) *NDJSON {
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	return &NDJSON{
		name:        name,
		endpoint:    strings.TrimRight(endpoint, "/"),
		token:       cfg.Token,
		key:         cfg.Key,
		temperature: cfg.Temperature,
		http:        newHTTPClient(cfg.Timeout),
		log:         log,
	}
}

func (p *NDJSON) Name() string { return p.name }

func (p *NDJSON) headers() map[string]string {
	headers := map[string]string{"Accept": "application/x-ndjson"}
	if p.token != "" {
		headers["Authorization"] = p.token
	}
	return headers
}

func (p *NDJSON) Chat(ctx context.Context, req Request) (stream.Source, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}

	payload := chatPayload{
		Key:         p.key,
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: temperature,
	}
	if p.name == config.ProviderOllama {
		payload.Options = map[string]any{"temperature": temperature}
	}

	resp, err := send(ctx, p.http, http.MethodPost, p.endpoint+"/chat", p.headers(), payload)
	if err != nil {
		return nil, err
	}
	return newNDJSONSource(resp.Body, p.log), nil
}

func (p *NDJSON) Models(ctx context.Context) ([]string, error) {
	var tags tagList
	if err := getJSON(ctx, p.http, p.endpoint+"/tags", p.headers(), &tags); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
