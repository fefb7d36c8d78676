package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quietriver/sitecache/pkg/lifecycle"
)

// PromptState is the page-scoped update prompt state.
type PromptState int

const (
	// PromptNone means no successor version is in flight.
	PromptNone PromptState = iota

	// PromptInstalling means a successor has begun background install.
	PromptInstalling

	// PromptWaiting means the successor finished installing and is parked
	// because an older version still controls the page.
	PromptWaiting

	// PromptActivating means the page has signaled the waiting version to
	// take over.
	PromptActivating

	// PromptReloaded means control transferred and the page performed its
	// single forced reload.
	PromptReloaded
)

// String returns the prompt state name used in logs.
func (s PromptState) String() string {
	switch s {
	case PromptNone:
		return "none"
	case PromptInstalling:
		return "installing"
	case PromptWaiting:
		return "waiting-for-activation"
	case PromptActivating:
		return "activating"
	case PromptReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Prompt is the page-side update notifier. It observes lifecycle transitions
// of a successor version, surfaces a dismissible prompt when the successor
// parks waiting, sends the skip-waiting signal on confirmation, and reloads
// the page exactly once when control transfers.
type Prompt struct {
	bus    *Bus
	logger zerolog.Logger

	mu        sync.Mutex
	state     PromptState
	visible   bool
	dismissed bool
	reloaded  bool
	onShow    func()
	onReload  func()
}

// NewPrompt creates a page-side prompt bound to the bus.
func NewPrompt(bus *Bus) *Prompt {
	return &Prompt{
		bus:    bus,
		state:  PromptNone,
		logger: log.With().Str("component", "update-prompt").Logger(),
	}
}

// OnShow registers the hook that displays the prompt UI. Invoked at most
// once per completed successor install.
func (p *Prompt) OnShow(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onShow = fn
}

// OnReload registers the hook that reloads the page after control transfers.
func (p *Prompt) OnReload(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReload = fn
}

// State returns the current prompt state.
func (p *Prompt) State() PromptState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Visible reports whether the prompt is currently displayed.
func (p *Prompt) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// ObserveState is wired to the successor controller's OnStateChange hook.
func (p *Prompt) ObserveState(s lifecycle.State) {
	switch s {
	case lifecycle.StateInstalling:
		p.mu.Lock()
		p.state = PromptInstalling
		// A new successor re-arms a previously dismissed prompt.
		p.dismissed = false
		p.mu.Unlock()

	case lifecycle.StateInstalled:
		p.mu.Lock()
		p.state = PromptWaiting
		show := p.onShow
		display := !p.visible && !p.dismissed
		if display {
			p.visible = true
		}
		p.mu.Unlock()

		if display {
			p.logger.Info().Msg("Update available, showing prompt")
			if show != nil {
				show()
			}
		}
	}
}

// Dismiss hides the prompt. It will not reappear until another successor
// completes installing.
func (p *Prompt) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible {
		return
	}
	p.visible = false
	p.dismissed = true
	p.logger.Debug().Msg("Update prompt dismissed")
}

// Confirm is the explicit user confirmation: it hides the prompt and sends
// the skip-waiting signal to the parked version.
func (p *Prompt) Confirm(ctx context.Context) error {
	p.mu.Lock()
	if p.state != PromptWaiting {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("no update waiting for activation (state %s)", state)
	}
	p.state = PromptActivating
	p.visible = false
	p.mu.Unlock()

	reply, err := p.bus.Request(ctx, Message{Type: MessageSkipWaiting})
	if err != nil {
		p.rearmWaiting()
		return fmt.Errorf("send skip-waiting signal: %w", err)
	}
	if reply.Err != "" {
		p.rearmWaiting()
		return fmt.Errorf("activation failed: %s", reply.Err)
	}
	return nil
}

// rearmWaiting rolls a failed confirmation back to the waiting state so the
// user can confirm again. The successor is still parked.
func (p *Prompt) rearmWaiting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PromptActivating {
		return
	}
	p.state = PromptWaiting
	p.visible = true
	p.logger.Warn().Msg("Activation failed, update prompt re-armed")
}

// OnControllerChange is invoked when the new version claims control. The
// page reloads exactly once per transfer; the guard flag stops reload loops.
func (p *Prompt) OnControllerChange() {
	p.mu.Lock()
	if p.reloaded {
		p.mu.Unlock()
		return
	}
	p.reloaded = true
	p.state = PromptReloaded
	reload := p.onReload
	p.mu.Unlock()

	p.logger.Info().Msg("Controller changed, reloading page")
	if reload != nil {
		reload()
	}
}
