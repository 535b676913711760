// Package model defines the core data types shared across the gateway:
// backends, tools, call records, and the HTTP API envelopes.
package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Field length limits for backend records. These mirror the column sizes in
// the backends table and keep caller-controlled strings bounded.
const (
	MaxBackendNameLen = 100
	MaxBackendURLLen  = 500
	MaxPrefixLen      = 100
)

// DefaultTimeoutSeconds is the per-call upstream timeout applied when a
// backend is created without an explicit timeout.
const DefaultTimeoutSeconds = 30.0

// nameRe constrains backend names and prefixes to characters that are safe
// in a mount URL path segment and in a prefixed tool name.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Backend describes one upstream MCP server whose tools are aggregated.
// The name is the immutable identity; everything else may be updated.
type Backend struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Enabled        bool      `json:"enabled"`
	TimeoutSeconds float64   `json:"timeout"`
	Prefix         string    `json:"prefix,omitempty"`
	MountEnabled   bool      `json:"mount_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EffectivePrefix returns the namespace under which this backend's tools are
// advertised: the explicit prefix when set, otherwise the backend name.
func (b Backend) EffectivePrefix() string {
	if b.Prefix != "" {
		return b.Prefix
	}
	return b.Name
}

// Timeout returns the per-call upstream timeout as a duration.
// Zero or negative timeouts fall back to the default.
func (b Backend) Timeout() time.Duration {
	secs := b.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultTimeoutSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// ValidateBackendName checks that a backend name is non-empty, within the
// length limit, and safe to use as a mount path segment.
func ValidateBackendName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxBackendNameLen {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxBackendNameLen)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("name may only contain letters, digits, '-' and '_'")
	}
	return nil
}

// ValidateBackendURL checks that a connection target is present and bounded.
func ValidateBackendURL(url string) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if len(url) > MaxBackendURLLen {
		return fmt.Errorf("url exceeds maximum length of %d characters", MaxBackendURLLen)
	}
	return nil
}

// ValidatePrefix checks an explicit tool-name prefix. An empty prefix is
// valid and means "use the backend name".
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if len(prefix) > MaxPrefixLen {
		return fmt.Errorf("prefix exceeds maximum length of %d characters", MaxPrefixLen)
	}
	if !nameRe.MatchString(prefix) {
		return fmt.Errorf("prefix may only contain letters, digits, '-' and '_'")
	}
	return nil
}
