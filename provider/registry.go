package provider

import (
	"context"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/config"
	"storechat/model"
)

// Registry holds the configured provider adapters, tracks the currently
// active one, and implements primary/fallback failover. When every
// configured backend is down the registry answers through the rule-based
// responder, so Generate never leaves the caller without a response.
//
// The registry is an explicit store passed by reference into the
// orchestrator; there are no package-level singletons.
type Registry struct {
	mu              sync.RWMutex
	providers       map[string]model.Provider
	activeID        string
	fallbackID      string
	failoverEnabled bool
	rule            model.Provider
	avail           *availabilityCache
}

// NewRegistry creates an empty registry. The rule-based responder is always
// present and is not listed among the registered providers.
func NewRegistry(storeName string, failoverEnabled bool) *Registry {
	return &Registry{
		providers:       make(map[string]model.Provider),
		failoverEnabled: failoverEnabled,
		rule:            NewRuleBasedProvider(storeName),
		avail:           newAvailabilityCache(availabilityTTL),
	}
}

// Register adds a provider under its own Name.
func (r *Registry) Register(p model.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Init selects the initial active provider: the primary if it probes
// available, else the fallback (when failover is enabled), else nobody,
// in which case the rule-based responder answers until a switch succeeds.
func (r *Registry) Init(ctx context.Context, primaryID, fallbackID string) {
	r.mu.Lock()
	r.fallbackID = fallbackID
	r.mu.Unlock()

	if r.SwitchProvider(ctx, primaryID) {
		return
	}
	if r.failoverEnabled && fallbackID != "" && fallbackID != primaryID {
		if r.SwitchProvider(ctx, fallbackID) {
			return
		}
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Registry] No provider available, falling back to rule-based responder")
	}
}

// SwitchProvider activates the provider with the given id iff it exists and
// probes available. The switch is atomic: on failure the previously active
// provider is left unchanged.
func (r *Registry) SwitchProvider(ctx context.Context, id string) bool {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !r.avail.check(ctx, p) {
		return false
	}

	r.mu.Lock()
	r.activeID = id
	r.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Registry] Active provider switched to %s (model %s)", id, p.GetModel())
	}
	return true
}

// IsAvailable reports the cached availability of a registered provider.
func (r *Registry) IsAvailable(ctx context.Context, id string) bool {
	r.mu.RLock()
	p, ok := r.providers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.avail.check(ctx, p)
}

// ActiveID returns the id of the active provider, or "rulebased" when no
// configured backend is active.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return r.rule.Name()
	}
	return r.activeID
}

// Active returns the currently active provider, or the rule-based responder
// when none is active.
func (r *Registry) Active() model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return r.rule
	}
	if p, ok := r.providers[r.activeID]; ok {
		return p
	}
	return r.rule
}

// Generate targets the currently active provider. If the call fails and
// failover is enabled with a distinct fallback configured, it retries once
// against the fallback; after that the rule-based responder answers. The
// failed provider is marked unavailable in the cache so switch and
// availability reads observe the failure.
func (r *Registry) Generate(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	active := r.Active()

	resp, err := active.GenerateResponse(ctx, messages, tools)
	if err == nil {
		return resp, nil
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Registry] Provider %s failed: %v", active.Name(), err)
	}
	r.noteFailure(active.Name())

	if r.failoverEnabled {
		if fb := r.fallbackFor(active.Name()); fb != nil {
			resp, err = fb.GenerateResponse(ctx, messages, tools)
			if err == nil {
				return resp, nil
			}
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Registry] Fallback provider %s failed: %v", fb.Name(), err)
			}
			r.noteFailure(fb.Name())
		}
	}

	return r.rule.GenerateResponse(ctx, messages, tools)
}

// fallbackFor returns the configured fallback provider when it is distinct
// from the provider that just failed.
func (r *Registry) fallbackFor(failedID string) model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallbackID == "" || r.fallbackID == failedID {
		return nil
	}
	return r.providers[r.fallbackID]
}

// noteFailure marks a provider unavailable in the cache so switch/availability
// reads observe the failure until the entry expires.
func (r *Registry) noteFailure(id string) {
	r.avail.mu.Lock()
	r.avail.entries[id] = availEntry{available: false, checkedAt: time.Now()}
	r.avail.mu.Unlock()
}
