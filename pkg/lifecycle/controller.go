// Package lifecycle drives the install -> activate -> serve sequence of a
// cache controller version.
//
// Install precaches the declared asset manifest into the new static
// generation as an all-or-nothing commit: a partially cached version is
// worse than forcing a reinstall retry. Activate deletes every generation
// outside the current version's set and then claims control. Install
// failures leave the previously active version fully in control.
package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quietriver/sitecache/pkg/cache"
)

// State is the controller's position in the install/activate sequence.
type State int

const (
	// StateIdle means no install has been attempted yet.
	StateIdle State = iota

	// StateInstalling means the manifest precache is in progress.
	StateInstalling

	// StateInstalled means the manifest committed and the version is parked
	// waiting for activation.
	StateInstalled

	// StateActivating means stale generations are being swept.
	StateActivating

	// StateActivated means this version controls all requests.
	StateActivated

	// StateFailed means the install aborted; the prior version is untouched.
	StateFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallError reports the manifest asset that aborted an install.
type InstallError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return fmt.Sprintf("install manifest failure at %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Config holds the controller configuration for one deployed version.
type Config struct {
	// Version names the deploy, e.g. "v3". Generation names derive from it,
	// so a deploy that changes the manifest must also change the version.
	Version string

	// Origin is the base URL relative manifest paths resolve against.
	Origin string

	// Manifest is the fixed list of asset paths (or absolute URLs) to
	// precache on install.
	Manifest []string

	// SkipWaiting forces immediate activation after a successful install
	// instead of parking in the installed state.
	SkipWaiting bool

	// Client is the HTTP client used for manifest fetches
	// (default: a plain http.Client).
	Client *http.Client
}

// Controller is the lifecycle state machine for one version.
type Controller struct {
	registry *cache.Registry
	client   *http.Client
	cfg      Config
	logger   zerolog.Logger

	mu            sync.Mutex
	state         State
	onStateChange func(State)
	onClaim       func()
}

// NewController creates a lifecycle controller.
func NewController(registry *cache.Registry, cfg Config) (*Controller, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if cfg.Origin == "" {
		return nil, fmt.Errorf("origin is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Controller{
		registry: registry,
		client:   client,
		cfg:      cfg,
		state:    StateIdle,
		logger: log.With().
			Str("component", "lifecycle").
			Str("version", cfg.Version).
			Logger(),
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers a hook invoked after every state transition.
// The update notifier observes transitions through it.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnClaim registers a hook invoked when this version takes control of
// already-open pages at the end of activation.
func (c *Controller) OnClaim(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClaim = fn
}

// Generation returns this version's generation name for a purpose.
func (c *Controller) Generation(purpose cache.Purpose) string {
	return cache.GenerationName(purpose, c.cfg.Version)
}

// GenerationSet returns the full set of generation names this version owns.
// Activation keeps exactly this set and deletes everything else.
func (c *Controller) GenerationSet() map[string]struct{} {
	return map[string]struct{}{
		c.Generation(cache.PurposeStatic):  {},
		c.Generation(cache.PurposeDynamic): {},
		c.Generation(cache.PurposeAPI):     {},
	}
}

// Install precaches the full manifest into the static generation. The commit
// is all-or-nothing: any single asset failing to fetch aborts the install
// with zero entries left behind, and the previously active version stays in
// control. With SkipWaiting set, a successful install activates immediately.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	generation := c.Generation(cache.PurposeStatic)

	c.logger.Info().
		Str("generation", generation).
		Int("assets", len(c.cfg.Manifest)).
		Msg("Installing manifest")

	// Stage every asset in memory before writing anything.
	type staged struct {
		url   string
		entry *cache.Entry
	}
	assets := make([]staged, 0, len(c.cfg.Manifest))

	for _, path := range c.cfg.Manifest {
		url := c.resolveURL(path)
		entry, err := c.fetchAsset(ctx, url)
		if err != nil {
			c.setState(StateFailed)
			installsTotal.WithLabelValues("failure").Inc()
			c.logger.Error().
				Err(err).
				Str("url", url).
				Msg("Install aborted, previous version remains in control")
			return &InstallError{URL: url, Err: err}
		}
		assets = append(assets, staged{url: url, entry: entry})
	}

	// Commit the batch. A write failure rolls the generation back so no
	// partial manifest survives.
	store := c.registry.Open(generation)
	for _, a := range assets {
		if err := store.Put(ctx, a.url, a.entry); err != nil {
			if _, derr := c.registry.DeleteGeneration(ctx, generation); derr != nil {
				c.logger.Warn().Err(derr).Str("generation", generation).Msg("Rollback cleanup failed")
			}
			c.setState(StateFailed)
			installsTotal.WithLabelValues("failure").Inc()
			return &InstallError{URL: a.url, Err: err}
		}
	}

	c.setState(StateInstalled)
	installsTotal.WithLabelValues("success").Inc()
	c.logger.Info().
		Str("generation", generation).
		Int("assets", len(assets)).
		Msg("Install complete")

	if c.cfg.SkipWaiting {
		return c.Activate(ctx)
	}
	return nil
}

// Activate sweeps every generation outside this version's set and claims
// control of open pages. Sweep failures are logged but never block the
// claim. Calling Activate again with an unchanged generation set is a no-op
// beyond the state transitions.
func (c *Controller) Activate(ctx context.Context) error {
	c.setState(StateActivating)

	deleted, err := c.registry.DeleteGenerationsNotIn(ctx, c.GenerationSet())
	if err != nil {
		c.logger.Warn().
			Err(err).
			Msg("Generation sweep failed, claiming control anyway")
	}
	if len(deleted) > 0 {
		c.logger.Info().
			Strs("generations", deleted).
			Msg("Swept stale generations")
	}

	c.mu.Lock()
	claim := c.onClaim
	c.mu.Unlock()
	if claim != nil {
		claim()
	}

	c.setState(StateActivated)
	activationsTotal.Inc()
	return nil
}

// setState transitions the state machine and fires the observer hook.
func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	hook := c.onStateChange
	c.mu.Unlock()

	c.logger.Debug().Str("state", s.String()).Msg("State transition")
	if hook != nil {
		hook(s)
	}
}

// resolveURL turns a manifest path into an absolute URL against the origin.
func (c *Controller) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.cfg.Origin, "/") + "/" + strings.TrimLeft(path, "/")
}

// fetchAsset fetches one manifest asset. Any non-2xx status counts as a
// failed fetch: the install contract is that every asset commits or none do.
func (c *Controller) fetchAsset(ctx context.Context, url string) (*cache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, fmt.Errorf("snapshot asset: %w", err)
	}
	if !entry.Successful() {
		return nil, fmt.Errorf("asset returned status %d", entry.StatusCode)
	}
	return entry, nil
}
