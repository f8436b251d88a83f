package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto distinct process exit statuses so
// wrapper scripts can tell a missing camera from a failed upload.
func exitCode(err error) int {
	switch services.Classify(err) {
	case services.KindNone:
		return 0
	case services.KindPermissionDenied:
		return 3
	case services.KindDeviceUnavailable:
		return 4
	case services.KindInvalidState:
		return 5
	case services.KindSubmissionFailed:
		return 6
	default:
		return 1
	}
}
