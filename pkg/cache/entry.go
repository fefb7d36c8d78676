package cache

import (
	"net/http"
	"time"
)

// Entry represents a cached response snapshot.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// StoredAt is when we captured this snapshot
	StoredAt time.Time `json:"stored_at"`
}

// Successful returns true if the snapshot captured a 2xx response.
// Only successful snapshots are eligible for storage.
func (e *Entry) Successful() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// Age returns how long ago the snapshot was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StoredAt)
}
