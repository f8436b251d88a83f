package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sys/unix"

	"github.com/UtsahaJoshi/The-New-Hires/internal/devices"
	"github.com/UtsahaJoshi/The-New-Hires/internal/identity"
	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

const endpointTimeout = 5 * time.Second

// CheckEndpoint verifies that the submission server answers. Any response
// below 500 other than an auth rejection counts as reachable; the upload
// route itself is not exercised.
func CheckEndpoint(ctx context.Context, baseURL, token string) Result {
	const name = "Submission endpoint"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	client := resty.New().
		SetTimeout(endpointTimeout).
		SetRetryCount(0)
	req := client.R().SetContext(checkCtx)
	if token = strings.TrimSpace(token); token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Get(base + "/")
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(base, err)}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s (auth failed: %d)", base, code)}
	case code >= http.StatusInternalServerError:
		return Result{Name: name, Detail: fmt.Sprintf("%s (server error: %d)", base, code)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDevice probes a capture node. Backend source names such as "default"
// cannot be probed without opening them and pass as-is.
func CheckDevice(name, device string) Result {
	device = strings.TrimSpace(device)
	if !devices.IsPath(device) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (backend source, not probed)", device)}
	}
	if err := devices.Probe(device); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s: %v)", device, services.Classify(err), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", device)}
}

// CheckIdentity verifies that a signed-in user record is available.
func CheckIdentity(ctx context.Context, sessionFile string) Result {
	const name = "User session"

	id, err := identity.NewFileSource(sessionFile).Identifier(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", sessionFile, services.UserMessage(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("user %s", id)}
}

func summarizeHTTPError(base string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s (timed out)", base)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s (timed out)", base)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("%s (unreachable: %v)", base, opErr.Err)
	}
	return fmt.Sprintf("%s (%v)", base, err)
}
