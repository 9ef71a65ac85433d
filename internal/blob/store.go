// Package blob stores raw fetched page content. Observation rows carry the
// returned key, never the blob itself.
package blob

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Store writes raw page captures and returns a stable key for later audit.
type Store interface {
	Put(ctx context.Context, key string, content io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

var keyUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Key builds the canonical blob key for one fetched page:
// <job>/<dealer>_<unix millis>.<ext>.
func Key(jobID string, dealerID uint, at time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "md"
	}
	job := keyUnsafe.ReplaceAllString(strings.TrimSpace(jobID), "-")
	if job == "" {
		job = "adhoc"
	}
	return fmt.Sprintf("%s/%d_%d.%s", job, dealerID, at.UnixMilli(), ext)
}
