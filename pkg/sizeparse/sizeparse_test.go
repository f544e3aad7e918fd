package sizeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  uint64
	}{
		{"123", 123},
		{"123B", 123},
		{"0", 0},
		{"10KB", 10 * 1024},
		{"5MB", 5 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1mb", 1024 * 1024},
		{"2Kb", 2 * 1024},
	}

	for _, c := range cases {
		got, err := Parse(c.input)
		require.NoError(t, err, c.input)
		assert.Equal(t, c.want, got, c.input)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "MB", "abc", "10TB", "10 MB", "-5MB", "1.5MB"} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}
}

func TestParseOverflow(t *testing.T) {
	_, err := Parse("99999999999999999999")
	assert.Error(t, err)

	_, err = Parse("18446744073709551615GB")
	assert.Error(t, err)
}
