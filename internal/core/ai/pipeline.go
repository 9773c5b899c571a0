// Package ai consolidates a batch of review comments into a single
// instruction block using a prioritized chain of language-model providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/kv"
	"github.com/critic-sh/critic/internal/providers"
)

// kv keys for the reviewer's persisted provider choice.
const (
	keyProvider = "ai_provider"
	keyModel    = "ai_model"
)

// ChainEntry is one provider/model pair in the fallback chain.
type ChainEntry struct {
	Provider string
	Model    string
}

// DefaultChain is ordered cheapest first. The persisted user choice, when
// set, is tried before any of these.
var DefaultChain = []ChainEntry{
	{Provider: "gemini", Model: "gemini-2.0-flash"},
	{Provider: "openai", Model: "gpt-4o-mini"},
	{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
}

// ErrEmptyBatch is returned when Process is called with no comments.
var ErrEmptyBatch = errors.New("ai: empty comment batch")

// ExhaustedError is returned when every chain entry failed or was skipped.
type ExhaustedError struct {
	Attempted []string
	Skipped   []string
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempted) == 0 {
		return "all providers unavailable: no credentials configured"
	}
	return fmt.Sprintf("all providers exhausted: %s", strings.Join(e.Attempted, ", "))
}

// Settings is the persisted provider choice. Zero value means unset.
type Settings struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// clientFactory builds a provider client by name. Swapped out in tests.
type clientFactory func(provider string) (providers.Client, error)

// Pipeline walks the fallback chain for each consolidation request.
type Pipeline struct {
	store     kv.KV
	chain     []ChainEntry
	newClient clientFactory
	log       zerolog.Logger
}

func NewPipeline(store kv.KV, chain []ChainEntry, log zerolog.Logger) *Pipeline {
	if len(chain) == 0 {
		chain = DefaultChain
	}
	return &Pipeline{
		store:     store,
		chain:     chain,
		newClient: providers.New,
		log:       log.With().Str("cmp", "ai").Logger(),
	}
}

// Process builds the consolidation prompt and tries each chain entry in
// order. The first success is returned verbatim. Absent-credential providers
// are skipped without an attempt; any other failure falls through to the
// next entry.
func (p *Pipeline) Process(ctx context.Context, comments []comment.Comment) (string, error) {
	if len(comments) == 0 {
		return "", ErrEmptyBatch
	}

	prompt := BuildPrompt(comments)

	var attempted, skipped []string
	for _, entry := range p.candidates(ctx) {
		client, err := p.newClient(entry.Provider)
		if err != nil {
			if errors.Is(err, providers.ErrNoCredential) {
				p.log.Debug().Str("provider", entry.Provider).Msg("skipping provider, no credential")
				skipped = append(skipped, entry.Provider)
				continue
			}
			p.log.Warn().Err(err).Str("provider", entry.Provider).Msg("provider construction failed")
			attempted = append(attempted, entry.Provider)
			continue
		}

		p.log.Debug().Str("provider", entry.Provider).Str("model", entry.Model).Msg("attempting provider")
		out, err := client.Generate(ctx, entry.Model, prompt)
		if err != nil {
			p.log.Warn().Err(err).Str("provider", entry.Provider).Str("model", entry.Model).Msg("provider failed, falling through")
			attempted = append(attempted, entry.Provider)
			continue
		}
		return out, nil
	}

	return "", &ExhaustedError{Attempted: attempted, Skipped: skipped}
}

// candidates prepends the persisted user choice, when set, and drops the
// duplicate chain entry so the same pair is never tried twice.
func (p *Pipeline) candidates(ctx context.Context) []ChainEntry {
	settings, err := p.LoadSettings(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("reading provider settings, using default chain")
		return p.chain
	}
	if settings.Provider == "" || settings.Model == "" {
		return p.chain
	}

	user := ChainEntry{Provider: settings.Provider, Model: settings.Model}
	out := []ChainEntry{user}
	for _, entry := range p.chain {
		if entry != user {
			out = append(out, entry)
		}
	}
	return out
}

// SaveSettings persists the reviewer's provider/model choice.
func (p *Pipeline) SaveSettings(ctx context.Context, s Settings) error {
	if s.Provider == "" || s.Model == "" {
		return &comment.ValidationError{Field: "provider", Reason: "provider and model are required"}
	}
	if providers.Models(s.Provider) == nil {
		return &comment.ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", s.Provider)}
	}
	if err := p.store.Set(ctx, keyProvider, s.Provider); err != nil {
		return fmt.Errorf("persisting provider: %w", err)
	}
	if err := p.store.Set(ctx, keyModel, s.Model); err != nil {
		return fmt.Errorf("persisting model: %w", err)
	}
	return nil
}

// LoadSettings returns the persisted choice, or the zero value when unset.
func (p *Pipeline) LoadSettings(ctx context.Context) (Settings, error) {
	provider, _, err := p.store.Get(ctx, keyProvider)
	if err != nil {
		return Settings{}, err
	}
	model, _, err := p.store.Get(ctx, keyModel)
	if err != nil {
		return Settings{}, err
	}
	return Settings{Provider: provider, Model: model}, nil
}

// AvailableProviders reports which providers have a credential present.
// Presence is all that is checked, validity surfaces on first call.
func (p *Pipeline) AvailableProviders() []string {
	var out []string
	for _, name := range providers.Names() {
		if _, err := p.newClient(name); err == nil {
			out = append(out, name)
		}
	}
	return out
}

// ProviderModels returns the static catalog for every supported provider.
func (p *Pipeline) ProviderModels() map[string][]string {
	out := make(map[string][]string, len(providers.Names()))
	for _, name := range providers.Names() {
		out[name] = providers.Models(name)
	}
	return out
}
