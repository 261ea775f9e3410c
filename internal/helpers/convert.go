// Package helpers provides numeric clamping and pagination helpers.
//
// Database columns such as ttl and prio are plain integers, while DNS wire
// types use fixed-width unsigned fields; the clamp helpers bridge the two
// without overflow.
package helpers

import (
	"math"
	"strconv"
	"strings"
)

// ClampInt restricts v to the range [lowerLimit, upperLimit].
func ClampInt(v, lowerLimit, upperLimit int) int {
	if v < lowerLimit {
		return lowerLimit
	}
	if v > upperLimit {
		return upperLimit
	}
	return v
}

// ClampIntToUint16 converts v to uint16 with clamping.
func ClampIntToUint16(v int) uint16 {
	return uint16(ClampInt(v, 0, math.MaxUint16)) //nolint:gosec // clamped to valid range
}

// ClampIntToUint32 converts v to uint32 with clamping.
func ClampIntToUint32(v int) uint32 {
	return uint32(ClampInt(v, 0, math.MaxUint32)) //nolint:gosec // clamped to valid range
}

// MaxPageSize bounds the limit accepted from clients.
const MaxPageSize = 1000

// Pagination converts 1-based page and per-page query values into an
// offset/limit pair. Unparsable or out-of-range values fall back to page 1
// and defaultPerPage.
func Pagination(page, perPage string, defaultPerPage int) (offset, limit int) {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || p < 1 {
		p = 1
	}
	limit = defaultPerPage
	if n, err := strconv.Atoi(strings.TrimSpace(perPage)); err == nil && n > 0 {
		limit = n
	}
	limit = ClampInt(limit, 1, MaxPageSize)
	return (p - 1) * limit, limit
}
