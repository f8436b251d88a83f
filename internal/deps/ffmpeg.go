package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// ResolveFFmpeg locates the ffmpeg binary used for capture. A configured
// value containing a path separator is used as-is when executable; bare names
// are resolved through PATH.
func ResolveFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for camera and microphone capture",
	}

	command := strings.TrimSpace(configured)
	if command == "" {
		command = defaultFFmpeg
	}
	result.Command = command

	if strings.ContainsRune(command, filepath.Separator) {
		info, err := os.Stat(command)
		if err != nil {
			result.Detail = fmt.Sprintf("binary %q not found", command)
			return result
		}
		if !isExecutable(info) {
			result.Detail = fmt.Sprintf("binary %q is not executable", command)
			return result
		}
		result.Available = true
		return result
	}

	resolved, err := exec.LookPath(command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", command)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
