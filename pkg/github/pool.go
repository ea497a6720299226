package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credential is a named token source in the pool.
type Credential struct {
	Source oauth2.TokenSource
	Name   string
}

// CredentialPool rotates requests across GitHub credentials.
// It is safe for concurrent use.
type CredentialPool struct {
	exhausted map[int]time.Time
	now       func() time.Time
	creds     []Credential
	next      int
	mu        sync.Mutex
}

// NewCredentialPool creates a pool; at least one credential is required.
func NewCredentialPool(creds ...Credential) (*CredentialPool, error) {
	if len(creds) == 0 {
		return nil, errors.New("no GitHub credentials configured")
	}
	return &CredentialPool{
		creds:     creds,
		exhausted: make(map[int]time.Time),
		now:       time.Now,
	}, nil
}

// NewTokenPool validates personal access tokens and wraps each as a static token source.
func NewTokenPool(tokens []string) (*CredentialPool, error) {
	creds, err := TokenCredentials(tokens)
	if err != nil {
		return nil, err
	}
	return NewCredentialPool(creds...)
}

// TokenCredentials validates personal access tokens and returns one credential per token.
// Blank entries are skipped.
func TokenCredentials(tokens []string) ([]Credential, error) {
	var creds []Credential
	for i, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if err := validateToken(t); err != nil {
			return nil, fmt.Errorf("token %d: %w", i+1, err)
		}
		creds = append(creds, Credential{
			Name:   fmt.Sprintf("token-%d", i+1),
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: t}),
		})
	}
	return creds, nil
}

// Len returns the number of credentials in the pool.
func (p *CredentialPool) Len() int {
	return len(p.creds)
}

// Next returns the index and access token of the credential to use next.
// Exhausted credentials are skipped while any other is available; a credential
// whose reset time has passed is available again.
func (p *CredentialPool) Next(ctx context.Context) (int, string, error) {
	p.mu.Lock()
	p.pruneLocked()
	idx := p.next
	for range len(p.creds) {
		if _, bad := p.exhausted[idx]; !bad {
			break
		}
		idx = (idx + 1) % len(p.creds)
	}
	p.next = idx
	src := p.creds[idx]
	p.mu.Unlock()

	tok, err := src.Source.Token()
	if err != nil {
		return idx, "", fmt.Errorf("credential %s: %w", src.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return idx, "", err
	}
	return idx, tok.AccessToken, nil
}

// MarkExhausted records that credential idx hit its rate limit until reset and
// advances rotation. It reports whether every credential is now exhausted, in
// which case the pass is cleared and the earliest reset is returned.
func (p *CredentialPool) MarkExhausted(idx int, reset time.Time) (bool, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked()
	p.exhausted[idx] = reset
	if p.next == idx {
		p.next = (idx + 1) % len(p.creds)
	}
	slog.Warn("GitHub credential rate limited", "component", "http",
		"credential", p.creds[idx].Name, "reset", reset.Format(time.RFC3339),
		"exhausted", len(p.exhausted), "total", len(p.creds))

	if len(p.exhausted) < len(p.creds) {
		return false, time.Time{}
	}

	earliest := reset
	for _, r := range p.exhausted {
		if r.Before(earliest) {
			earliest = r
		}
	}
	p.exhausted = make(map[int]time.Time)
	return true, earliest
}

// pruneLocked forgets credentials whose reset time has passed.
func (p *CredentialPool) pruneLocked() {
	now := p.now()
	for idx, reset := range p.exhausted {
		if !reset.After(now) {
			delete(p.exhausted, idx)
		}
	}
}

// Restore clears the exhausted flag for idx after a successful request.
func (p *CredentialPool) Restore(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.exhausted, idx)
}
