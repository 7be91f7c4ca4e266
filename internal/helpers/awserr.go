package helpers

import (
	"errors"
	"slices"
	"strings"

	"github.com/aws/smithy-go"
)

// HasErrorCode reports whether err carries one of the given AWS API error codes.
func HasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(codes, apiErr.ErrorCode())
}

// HasErrorMessage reports whether err is an AWS API error whose message contains substr.
func HasErrorMessage(err error, substr string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.ErrorMessage(), substr)
}
