package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/david/grant-matcher/internal/config"
)

// Credential is one completion-service account. Each credential carries its
// own optional client-side throttle.
type Credential struct {
	Name    string
	client  Completer
	limiter *rate.Limiter
}

func NewCredential(name string, client Completer, rps float64) *Credential {
	c := &Credential{Name: name, client: client}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

func (c *Credential) GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("credential %s: %w", c.Name, err)
		}
	}
	return c.client.GenerateCompletion(ctx, prompt, jsonMode)
}

// Pool distributes work over a fixed set of credentials. The rotation
// counter belongs to the pool instance, so two pools never interfere.
type Pool struct {
	creds []*Credential
	next  atomic.Uint64
}

func NewPool(creds ...*Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, errors.New("credential pool needs at least one credential")
	}
	return &Pool{creds: creds}, nil
}

func (p *Pool) Size() int { return len(p.creds) }

// ForBatch returns the credential assigned to batch i (i mod pool size).
func (p *Pool) ForBatch(i int) *Credential {
	if i < 0 {
		i = -i
	}
	return p.creds[i%len(p.creds)]
}

// Next hands out credentials round robin for one-off calls.
func (p *Pool) Next() *Credential {
	n := p.next.Add(1) - 1
	return p.creds[n%uint64(len(p.creds))]
}

// NewCompleter builds the client for one configured credential.
func NewCompleter(cfg config.CredentialConfig) (Completer, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case config.ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}

// NewPoolFromConfig builds one credential per configured entry.
func NewPoolFromConfig(cfgs []config.CredentialConfig) (*Pool, error) {
	creds := make([]*Credential, 0, len(cfgs))
	for i, cc := range cfgs {
		client, err := NewCompleter(cc)
		if err != nil {
			return nil, fmt.Errorf("credential %d: %w", i, err)
		}
		name := cc.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", strings.ToLower(cc.Provider), i+1)
		}
		creds = append(creds, NewCredential(name, client, cc.RateLimitRPS))
	}
	return NewPool(creds...)
}
