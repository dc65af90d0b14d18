// Package storage holds the object-store backends for booking photos.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// SanitizeFilename replaces every rune outside [A-Za-z0-9_.-] with an
// underscore so uploaded names are safe as object keys.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// ObjectPath builds the canonical upload key for a booking photo:
// booking_photos/{bookingKey}/{unix-millis}_{sanitized-name}.
func ObjectPath(bookingKey, filename string, now time.Time) string {
	return fmt.Sprintf("booking_photos/%s/%d_%s", bookingKey, now.UnixMilli(), SanitizeFilename(filename))
}
