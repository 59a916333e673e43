// Package monitor provides a debounced file-system change notifier.
//
// A Monitor observes a directory (optionally recursively, optionally a single
// file inside it) and turns bursts of raw events into one notification per
// quiet period. Every qualifying event restarts the quiet period, so a steady
// stream of writes postpones the notification until activity pauses.
// Editor and download noise (swap files, backups, partial downloads) is
// filtered before it can start or extend a window.
//
// Notifications are marshaled onto a dispatch.Dispatcher chosen by the
// caller. Without one, each Monitor owns a serial dispatcher so callbacks
// never run concurrently with each other.
//
// The primary source is fsnotify; polling is used when fsnotify cannot be
// created or when WithPolling is given (network mounts, container volumes).
//
// Usage:
//
//	loop := dispatch.NewLoop()
//	m, err := monitor.New("/path/to/assets", func(c monitor.Change) {
//	    reload(c.Path)
//	}, monitor.WithDispatcher(loop), monitor.WithFilter("*.json"))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	// once per frame
//	loop.RunPending()
package monitor
