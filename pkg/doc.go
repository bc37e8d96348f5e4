// Package pkg provides the core libraries for the driftlane overlay scheduler.
//
// # Overview
//
// Driftlane flows short chat messages ("danmaku") across a surface in
// horizontal lanes so that no two visible messages ever overlap. The pkg
// directory is organized into four areas:
//
//  1. [overlay] - The scheduler: admission, lane placement, timing, pause and
//     playback-rate sync
//  2. [source] - Message sources feeding the scheduler (redis pub/sub)
//  3. [errors] / [observability] - Structured errors and instrumentation hooks
//  4. [buildinfo] - Version metadata injected at build time
//
// # Architecture
//
// The typical data flow:
//
//	Message Source (HTTP, redis, demo spawner)
//	         ↓
//	    [overlay] admission gate (ingress cap)
//	         ↓
//	    [overlay] pending queue + placement engine
//	         ↓
//	    Renderer (terminal demo, serve-mode estimator)
//
// # Quick Start
//
// Create an overlay and feed it messages:
//
//	settings := overlay.Settings{}
//	_ = settings.ValidateAndSetDefaults()
//	geo := overlay.ComputeGeometry(1280, 720, settings)
//	ov, _ := overlay.New(myRenderer, geo, settings)
//	ov.AddMessage(overlay.NewMessage(overlay.KindNormal, "hello"))
//
// The renderer decides what a message looks like; the overlay only decides
// where and when it appears. See the [overlay] package documentation for the
// full contract.
//
// [overlay]: https://pkg.go.dev/github.com/driftlane/driftlane/pkg/overlay
// [source]: https://pkg.go.dev/github.com/driftlane/driftlane/pkg/source/redis
// [errors]: https://pkg.go.dev/github.com/driftlane/driftlane/pkg/errors
// [observability]: https://pkg.go.dev/github.com/driftlane/driftlane/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/driftlane/driftlane/pkg/buildinfo
package pkg
