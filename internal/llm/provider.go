// Package llm suggests catalog search terms for a listener's seed artists.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"songswipe/internal/core"
)

const (
	// DefaultMaxTerms caps the number of suggested terms
	DefaultMaxTerms = 5
	// suggestTimeout bounds one suggestion round trip
	suggestTimeout = 15 * time.Second
	temperature    = 0.7
	maxTokens      = 300
)

const systemPrompt = `You help a music discovery app search a song catalog.
Given a list of artists a listener likes, propose short search terms (genres, moods, scenes or similar artists)
that would find songs the listener is likely to enjoy.

Return JSON in this exact format:
{"terms": ["term one", "term two"]}

Rules:
- at most %d terms
- each term is 1 to 3 words
- do not repeat the input artists
- respond with valid JSON only`

// Completer sends one system+user prompt to a model and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CallRecorder observes suggestion calls, e.g. for metrics.
type CallRecorder func(provider string, err error)

type Provider struct {
	config   *core.LLMConfig
	logger   *zap.Logger
	client   Completer
	recorder CallRecorder
}

func NewProvider(config *core.LLMConfig, logger *zap.Logger) (*Provider, error) {
	logger = logger.Named("llm")

	var (
		client Completer
		err    error
	)
	switch config.Provider {
	case "openai":
		client, err = NewOpenAIClient(config, logger)
	case "anthropic":
		client, err = NewAnthropicClient(config, logger)
	case "ollama":
		client, err = NewOllamaClient(config, logger)
	case "none", "":
		return &Provider{config: config, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", config.Provider, err)
	}

	return &Provider{config: config, logger: logger, client: client}, nil
}

// Enabled reports whether a model is configured.
func (p *Provider) Enabled() bool {
	return p.client != nil
}

// SetRecorder installs a call recorder.
func (p *Provider) SetRecorder(r CallRecorder) {
	p.recorder = r
}

// SuggestTerms asks the model for search terms related to the given artists.
func (p *Provider) SuggestTerms(ctx context.Context, artistNames []string) ([]string, error) {
	if p.client == nil {
		return nil, fmt.Errorf("LLM provider not configured")
	}
	if len(artistNames) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	limit := p.maxTerms()
	content, err := p.client.Complete(ctx, fmt.Sprintf(systemPrompt, limit),
		"Artists: "+strings.Join(artistNames, ", "))
	if p.recorder != nil {
		p.recorder(p.config.Provider, err)
	}
	if err != nil {
		return nil, err
	}

	terms := parseTerms(content, artistNames, limit)
	p.logger.Debug("Suggested search terms",
		zap.Strings("artists", artistNames),
		zap.Strings("terms", terms))
	return terms, nil
}

func (p *Provider) maxTerms() int {
	if p.config.MaxTerms > 0 {
		return p.config.MaxTerms
	}
	return DefaultMaxTerms
}

type termsResponse struct {
	Terms []string `json:"terms"`
}

// parseTerms accepts the JSON reply, or a comma or newline separated list when a model
// ignores the format. Input artists, blanks and duplicates are dropped.
func parseTerms(content string, artistNames []string, limit int) []string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")

	var raw []string
	var resp termsResponse
	if err := json.Unmarshal([]byte(content), &resp); err == nil {
		raw = resp.Terms
	} else {
		raw = strings.FieldsFunc(content, func(r rune) bool { return r == ',' || r == '\n' })
	}

	skip := make(map[string]struct{}, len(artistNames)+limit)
	for _, name := range artistNames {
		skip[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}

	terms := make([]string, 0, limit)
	for _, term := range raw {
		term = strings.Trim(strings.TrimSpace(term), `"-*. `)
		key := strings.ToLower(term)
		if term == "" {
			continue
		}
		if _, ok := skip[key]; ok {
			continue
		}
		skip[key] = struct{}{}
		terms = append(terms, term)
		if len(terms) == limit {
			break
		}
	}
	return terms
}
