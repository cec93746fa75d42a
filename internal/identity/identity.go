// Package identity manages the stable per-installation identifier attached
// to outgoing API requests. The token is attribution, not a credential:
// storage failures degrade to an empty id instead of failing the caller.
package identity

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const userIDFile = "user_id"

// Provider loads or creates the persisted identity token.
type Provider struct {
	mu       sync.Mutex
	stateDir string
	cached   string
}

// NewProvider creates a provider persisting under stateDir.
func NewProvider(stateDir string) *Provider {
	return &Provider{stateDir: stateDir}
}

// UserID returns the persisted token, generating and persisting a fresh
// UUIDv4 on first use. Returns "" when durable storage is unavailable.
func (p *Provider) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached
	}

	path := p.path()
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			p.cached = id
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(p.stateDir, 0o755); err != nil {
		return ""
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return ""
	}

	p.cached = id
	return id
}

// Reset discards the persisted token. The next UserID call yields a new one.
func (p *Provider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = ""
	err := os.Remove(p.path())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *Provider) path() string {
	return filepath.Join(p.stateDir, userIDFile)
}
