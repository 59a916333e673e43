package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// inotifyWatchesPath holds the per-user inotify watch limit on Linux.
var inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckWatchLimit compares the number of directories to watch with the
// inotify watch limit. Other platforms have no per-directory limit.
func (c *Checker) CheckWatchLimit(dirs int, countErr error) CheckResult {
	result := CheckResult{
		Name: "watch_limit",
	}

	if countErr != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to scan directory tree: %v", countErr)
		return result
	}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d directories", dirs)
		return result
	}

	limit, err := readLimit(inotifyWatchesPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d directories (limit unknown: %v)", dirs, err)
		return result
	}

	result.Message = fmt.Sprintf("%d directories (limit: %d)", dirs, limit)
	// other programs share the same per-user limit
	if dirs > limit/2 {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Raise the limit with 'sysctl fs.inotify.max_user_watches=%d' or use --poll", limit*4)
		return result
	}

	result.Status = StatusPass
	return result
}

func readLimit(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
