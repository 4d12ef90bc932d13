package obs

import (
	"path/filepath"
	"regexp"
	"strings"
)

var windowsDrivePattern = regexp.MustCompile(`^[A-Za-z]:[/\\]`)

// TranslateOutputPath maps a recording path as reported by the OBS host onto
// the local recordings directory. OBS may run on a different machine (often
// Windows), so only the basename of the reported path is trusted; the local
// directory supplies the rest.
func TranslateOutputPath(hostPath, localDir string) string {
	name := hostBasename(hostPath)
	if name == "" {
		return ""
	}
	return filepath.Join(localDir, name)
}

func hostBasename(hostPath string) string {
	trimmed := strings.TrimSpace(hostPath)
	if trimmed == "" {
		return ""
	}
	if windowsDrivePattern.MatchString(trimmed) {
		trimmed = trimmed[2:]
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	trimmed = strings.TrimRight(trimmed, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}
