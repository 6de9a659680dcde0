// Package coldstart handles "warming up" responses from scale-to-zero and
// newly deploying backends.
//
// A 503 may mean the target is loading rather than broken. Detection is
// primarily by body inspection (loading markers, an estimated_time field),
// with endpoint lifecycle status from the management collaborator as a
// secondary signal. On detection, the Handler enters a phased poll loop
// separate from ordinary retry: 2,4,8,16s over the first 30 seconds, then
// every 15s until three minutes, then every 30s, bounded by a session
// timeout. Each poll resends the original request unmodified.
//
// The loop exits on the first non-warm-up response (returned as-is), on
// the session timeout (*TimeoutError), or on a transport failure. With
// auto-wait disabled, detection surfaces *ModelLoadingError immediately.
package coldstart
