// Package overlay schedules a continuous stream of short messages across
// fixed-height horizontal lanes on a rectangular surface, danmaku-style,
// without visual collision.
//
// # Architecture
//
// The package is built around a single controller, [Overlay], that owns four
// pieces of state:
//
//   - Lane table: one record per lane holding the footprint and start time of
//     the most recent occupant. Rebuilt wholesale on any geometry change.
//   - Pending queue: messages that were admitted but not yet placed, each with
//     a "do not retry before" deadline.
//   - Active set: messages currently traversing the surface, each owning a
//     cancellable [Motion].
//   - Admission gate: a rolling one-second ingress cap applied before queueing.
//
// Collisions are prevented by construction, never detected after the fact:
// a placement is committed only when every lane in the candidate block is
// ready right now. Blocked messages wait in the queue and are retried by a
// single cancel-and-replace timer.
//
// # Collaborators
//
// The caller supplies a [Renderer], which mounts a message invisibly and
// reports its measured footprint before placement is attempted, and starts a
// [Motion] once a placement is committed. [TimedMotion] is a ready-made
// wall-clock implementation suitable for most surfaces.
//
// # Usage
//
//	settings := overlay.Settings{FontSize: 24, SpeedPxPerSec: 120}
//	if err := settings.ValidateAndSetDefaults(); err != nil {
//	    return err
//	}
//	geo := overlay.ComputeGeometry(1280, 720, settings)
//	ov, err := overlay.New(renderer, geo, settings)
//	if err != nil {
//	    return err
//	}
//	defer ov.Destroy()
//
//	ov.AddMessage(overlay.NewMessage(overlay.KindNormal, "hello"))
//	ov.SetPlaybackRate(1.5)
//	ov.Pause()
//	ov.Resume()
//
// All methods are safe for concurrent use; internally every entry point runs
// under one lock, so lane and queue mutation is effectively single-threaded.
package overlay
