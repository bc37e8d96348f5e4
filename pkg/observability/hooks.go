// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about scheduling decisions and message-source
// activity.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, plain counters)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetSchedulerHooks(&mySchedulerHooks{})
//	    observability.SetSourceHooks(&mySourceHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Scheduler().OnPlaced(laneStart, laneSpan, duration)
//	observability.Source().OnMessage("redis", channel)
package observability

import (
	"sync"
	"time"
)

// =============================================================================
// Scheduler Hooks
// =============================================================================

// SchedulerHooks receives events from the overlay scheduler.
type SchedulerHooks interface {
	// OnAdmitted records a message passing the ingress cap.
	OnAdmitted(kind string)

	// OnRateLimited records a message silently discarded by the ingress cap.
	OnRateLimited()

	// OnPlaced records a committed placement. duration is the traversal time
	// at playback rate 1.0.
	OnPlaced(laneStart, laneSpan int, duration time.Duration)

	// OnDeferred records a placement attempt blocked by lane contention.
	OnDeferred(wait time.Duration)

	// OnDropped records a message dropped after admission
	// (reason: "infeasible", "mount_failed").
	OnDropped(reason string)

	// OnRetryArmed records the single retry timer being (re)armed.
	OnRetryArmed(delay time.Duration)
}

// =============================================================================
// Source Hooks
// =============================================================================

// SourceHooks receives events from message sources (redis, HTTP ingest).
type SourceHooks interface {
	// OnMessage records a message received from a source.
	OnMessage(source, channel string)

	// OnSourceError records a source failure (network, decode).
	OnSourceError(source string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSchedulerHooks is a no-op implementation of SchedulerHooks.
type NoopSchedulerHooks struct{}

func (NoopSchedulerHooks) OnAdmitted(string)                {}
func (NoopSchedulerHooks) OnRateLimited()                   {}
func (NoopSchedulerHooks) OnPlaced(int, int, time.Duration) {}
func (NoopSchedulerHooks) OnDeferred(time.Duration)         {}
func (NoopSchedulerHooks) OnDropped(string)                 {}
func (NoopSchedulerHooks) OnRetryArmed(time.Duration)       {}

// NoopSourceHooks is a no-op implementation of SourceHooks.
type NoopSourceHooks struct{}

func (NoopSourceHooks) OnMessage(string, string)    {}
func (NoopSourceHooks) OnSourceError(string, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	schedulerHooks SchedulerHooks = NoopSchedulerHooks{}
	sourceHooks    SourceHooks    = NoopSourceHooks{}
	hooksMu        sync.RWMutex
)

// SetSchedulerHooks registers custom scheduler hooks.
// This should be called once at application startup before any scheduling.
func SetSchedulerHooks(h SchedulerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		schedulerHooks = h
	}
}

// SetSourceHooks registers custom source hooks.
// This should be called once at application startup before sources run.
func SetSourceHooks(h SourceHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sourceHooks = h
	}
}

// Scheduler returns the registered scheduler hooks.
func Scheduler() SchedulerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return schedulerHooks
}

// Source returns the registered source hooks.
func Source() SourceHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sourceHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	schedulerHooks = NoopSchedulerHooks{}
	sourceHooks = NoopSourceHooks{}
}
