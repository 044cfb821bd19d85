package backup

import (
	"errors"
	"slices"

	"github.com/aws/smithy-go"
)

// EC2 error codes for resources that no longer exist.
var notFoundCodes = []string{
	"InvalidAMIID.NotFound",
	"InvalidAMIID.Unavailable",
	"InvalidSnapshot.NotFound",
}

// isNotFound reports whether err is an EC2 API error saying the AMI or
// snapshot is already gone.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(notFoundCodes, apiErr.ErrorCode())
}
