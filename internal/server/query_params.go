package server

import (
	"strconv"
	"strings"
)

// parseLimit reads an optional non-negative page size and caps it at ceiling.
// An absent value yields 0 so the service applies its default.
func parseLimit(raw string, ceiling int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, newValidationError("limit", "invalid_limit", "invalid limit")
	}
	if parsed > ceiling {
		parsed = ceiling
	}
	return parsed, nil
}
