package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// IsThrottle reports whether an error is an AWS rate-limit rejection. Fed to
// the swarm pool so regional fan-out backs off instead of digging in.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException", "SlowDown":
		return true
	}
	return false
}
