package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"folio/internal/favorites"
	"folio/internal/logging"
	"folio/internal/services"
)

// CheckSource verifies that the remote source answers HTTP requests. Any
// response below 500 counts as reachable since the base URL itself need not
// serve content.
func CheckSource(ctx context.Context, baseURL, userAgent string) Result {
	const name = "Remote source"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s (server error %d)", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
}

// CheckNtfy verifies that the notification topic is a usable URL.
func CheckNtfy(topic string) Result {
	const name = "Notifications"

	u, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an http(s) topic URL)", topic)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (configured)", u.Host)}
}

// CheckFavorites verifies that the favorites record, when present, decodes.
func CheckFavorites(ctx context.Context, path string) Result {
	const name = "Favorites record"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}

	listing, err := favorites.Open(path, logging.NewNop()).List(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, services.UserMessage(err))}
	}
	if listing.Warning != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, services.UserMessage(listing.Warning))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d ids)", path, len(listing.IDs))}
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

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (source unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (source unreachable)"
	}
	return err.Error()
}
