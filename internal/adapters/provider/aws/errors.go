package aws

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/convergekit/converge/internal/errors"
)

// notFoundCodes are API error codes that mean "the resource does not exist",
// which is a normal lookup answer rather than a failure.
var notFoundCodes = map[string]struct{}{
	"NoSuchHostedZone":           {},
	"NoSuchBucket":               {},
	"NoSuchKey":                  {},
	"NoSuchWebsiteConfiguration": {},
	"DBInstanceNotFound":         {},
	"DBInstanceNotFoundFault":    {},
	"ResourceNotFoundException":  {},
	"NotFoundException":          {},
	"NotFound":                   {},
}

// transientCodes are API error codes worth retrying.
var transientCodes = map[string]struct{}{
	"Throttling":               {},
	"ThrottlingException":      {},
	"TooManyRequestsException": {},
	"RequestLimitExceeded":     {},
	"PriorRequestNotComplete":  {},
	"ServiceUnavailable":       {},
	"InternalError":            {},
	"InternalFailure":          {},
	"RequestTimeout":           {},
	"SlowDown":                 {},
}

var authCodes = map[string]struct{}{
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"AuthFailure":                 {},
	"UnauthorizedOperation":       {},
	"UnrecognizedClientException": {},
	"InvalidClientTokenId":        {},
	"ExpiredToken":                {},
	"SignatureDoesNotMatch":       {},
}

// classifyAPIError maps an AWS SDK error onto the application error codes the
// engine dispatches on. Only CodeProviderTransient is retried; auth failures
// and everything else fail the declaration immediately.
func classifyAPIError(ctx context.Context, err error, service, operation string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeTimeout,
			fmt.Sprintf("%s %s interrupted", service, operation))
	}

	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := notFoundCodes[code]; ok {
			return errors.Wrap(err, errors.CodeResourceNotFound,
				fmt.Sprintf("%s %s: resource not found", service, operation))
		}
		if _, ok := transientCodes[code]; ok {
			return errors.Wrap(err, errors.CodeProviderTransient,
				fmt.Sprintf("%s %s throttled or temporarily unavailable", service, operation))
		}
		if _, ok := authCodes[code]; ok {
			return errors.Wrap(err, errors.CodeProviderAuth,
				fmt.Sprintf("%s %s rejected: check AWS credentials and permissions", service, operation))
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return errors.Wrap(err, errors.CodeProviderTransient,
				fmt.Sprintf("%s %s failed server-side", service, operation))
		}
		return errors.Wrap(err, errors.CodeProviderFatal,
			fmt.Sprintf("%s %s failed (%s)", service, operation, code))
	}

	// Connection-level failures surface as plain errors, not APIErrors.
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout") {
		return errors.Wrap(err, errors.CodeProviderTransient,
			fmt.Sprintf("%s %s: network failure", service, operation))
	}

	return errors.Wrap(err, errors.CodeProviderFatal,
		fmt.Sprintf("%s %s failed", service, operation))
}

// isNotFound reports whether a classified error is the not-found answer.
func isNotFound(err error) bool {
	return errors.Is(err, errors.CodeResourceNotFound)
}
