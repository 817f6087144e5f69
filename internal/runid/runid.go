// Package runid generates correlation ids used to tie together the log
// lines and summary of a single batch or enrichment run.
package runid

import "github.com/google/uuid"

// New returns a fresh run correlation id.
func New() string {
	return uuid.New().String()
}
