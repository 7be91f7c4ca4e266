package helpers_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/superwerker/superwerker/internal/helpers"
)

func TestTruncate(t *testing.T) {
	testCases := []struct {
		Name     string
		Input    string
		Limit    int
		Expected string
	}{
		{
			Name:     "shorter_than_limit",
			Input:    "subject",
			Limit:    10,
			Expected: "subject",
		},
		{
			Name:     "exactly_limit",
			Input:    "subject",
			Limit:    7,
			Expected: "subject",
		},
		{
			Name:     "longer_than_limit",
			Input:    strings.Repeat("a", 12),
			Limit:    10,
			Expected: strings.Repeat("a", 10) + " ...",
		},
		{
			Name:     "multibyte_runes",
			Input:    "äöüäöü",
			Limit:    3,
			Expected: "äöü ...",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, helpers.Truncate(tc.Input, tc.Limit))
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", helpers.FirstNonEmpty("", "b", "c"))
	assert.Equal(t, "", helpers.FirstNonEmpty("", ""))
	assert.Equal(t, "", helpers.FirstNonEmpty())
}
