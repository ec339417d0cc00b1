// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// LLMConfig holds connection settings.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model tag to generate with (default: llama3.2).
	Model string

	// Timeout bounds one generation request (default: 120s).
	Timeout time.Duration
}

// LLMService calls /api/generate without streaming.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewLLMService creates an Ollama LLM service. It does not contact the
// server; use Ping for that.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
}

// Generate returns the model's completion of prompt. An unreachable server
// or a missing model is reported as domain.ErrLLMUnavailable; any other
// failure as domain.ErrGeneration.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	body := generateRequest{Model: s.model, Prompt: prompt}
	if opts.MaxTokens > 0 || opts.Temperature > 0 || len(opts.StopWords) > 0 {
		body.Options = &options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.StopWords,
		}
	}

	var out generateResponse
	if err := s.call(ctx, http.MethodPost, "/api/generate", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("%w: ollama: %s returned no text", domain.ErrGeneration, s.model)
	}
	return out.Response, nil
}

// ModelName returns the configured model tag.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks that the server answers and has the model pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	var tags tagsResponse
	if err := s.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return err
	}
	for _, m := range tags.Models {
		if hasModel(m.Name, s.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: ollama: model %s is not pulled (run 'ollama pull %s')",
		domain.ErrLLMUnavailable, s.model, s.model)
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}

// hasModel matches an installed tag against the configured one. A model
// configured without a tag matches its ":latest" install.
func hasModel(installed, want string) bool {
	if installed == want {
		return true
	}
	return !strings.Contains(want, ":") && installed == want+":latest"
}

// call sends one JSON request and decodes the reply into out.
func (s *LLMService) call(ctx context.Context, method, path string, in, out any) error {
	var payload io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: ollama: encoding request: %w", domain.ErrGeneration, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%w: ollama: %w", domain.ErrGeneration, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama at %s: %w", domain.ErrLLMUnavailable, s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: ollama: decoding %s response: %w", domain.ErrGeneration, path, err)
	}
	return nil
}

// statusError turns a non-200 reply into a domain error, quoting Ollama's
// {"error": "..."} message when present.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	kind := domain.ErrGeneration
	if resp.StatusCode == http.StatusNotFound {
		kind = domain.ErrLLMUnavailable
	}
	return fmt.Errorf("%w: ollama (status %d): %s", kind, resp.StatusCode, msg)
}
