package helpers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/helpers"
)

func TestPtr(t *testing.T) {
	testCases := []struct {
		Name  string
		Input any
	}{
		{Name: "string", Input: "SERVICE_CONTROL_POLICY"},
		{Name: "bool", Input: true},
		{Name: "slice", Input: []string{"eu-central-1", "eu-west-1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			p := helpers.Ptr(tc.Input)
			require.NotNil(t, p)
			assert.Equal(t, tc.Input, *p)
		})
	}
}

func TestPtrCopies(t *testing.T) {
	name := "superwerker"
	p := helpers.Ptr(name)
	name = "superwerker-root"
	assert.Equal(t, "superwerker", *p)
}
