// Package preflight checks whether a directory can be watched before a
// watch starts, and explains what to change when it cannot.
//
// The package validates:
//   - The target exists, is a directory and is readable
//   - Native notifications can be created (otherwise polling is used)
//   - The inotify watch limit covers the directory tree (Linux)
//   - The file descriptor limit (minimum 256)
//   - The state directory used for lock files is writable
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{Dir: "/path/to/assets", Recursive: true})
//	if checker.HasCriticalFailures(results) {
//	    // handle failures
//	}
package preflight
