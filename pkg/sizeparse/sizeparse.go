// Package sizeparse converts human-readable size strings like "10MB"
// into byte counts.
package sizeparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse accepts a decimal number with an optional case-insensitive
// suffix: "123", "123B", "10KB", "5MB", "1GB". Units are powers of
// 1024.
func Parse(input string) (uint64, error) {
	if input == "" {
		return 0, fmt.Errorf("empty size string")
	}

	digits := 0
	for digits < len(input) && input[digits] >= '0' && input[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("size %q has no numeric prefix", input)
	}

	value, err := strconv.ParseUint(input[:digits], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", input, err)
	}

	var multiplier uint64
	switch strings.ToUpper(input[digits:]) {
	case "", "B":
		multiplier = 1
	case "KB":
		multiplier = 1024
	case "MB":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("size %q has unsupported unit %q", input, input[digits:])
	}

	if multiplier > 1 && value > math.MaxUint64/multiplier {
		return 0, fmt.Errorf("size %q overflows", input)
	}
	return value * multiplier, nil
}
