package config

import (
	"context"
	"os"
	"sync"
	"time"
)

// Provider serves the current configuration and reloads the file when its
// modification time changes, so feature flags can be flipped without a
// restart.
type Provider struct {
	path string

	mu        sync.Mutex
	cfg       Config
	modTime   time.Time
	overrides []func(*Config)
}

// NewProvider loads path and returns a Provider over it.
func NewProvider(path string) (*Provider, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path, cfg: *cfg}
	if path != "" {
		if info, err := os.Stat(path); err == nil {
			p.modTime = info.ModTime()
		}
	}
	return p, nil
}

// Static returns a Provider that never reloads.
func Static(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Override applies fn to the current configuration and to every reload.
func (p *Provider) Override(fn func(*Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides = append(p.overrides, fn)
	fn(&p.cfg)
}

// Config returns the current configuration. A file that fails to reload
// keeps the previous configuration in effect.
func (p *Provider) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return p.cfg
	}
	info, err := os.Stat(p.path)
	if err != nil || info.ModTime().Equal(p.modTime) {
		return p.cfg
	}
	cfg, err := Load(p.path)
	if err != nil {
		return p.cfg
	}
	for _, fn := range p.overrides {
		fn(cfg)
	}
	p.cfg = *cfg
	p.modTime = info.ModTime()
	return p.cfg
}

// DuplicateDetection returns the effective duplicate detection settings.
func (p *Provider) DuplicateDetection(ctx context.Context) (DuplicateDetection, error) {
	if err := ctx.Err(); err != nil {
		return DuplicateDetection{}, err
	}
	cfg := p.Config()
	return cfg.Detection(), nil
}
