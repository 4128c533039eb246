// Package exchange hosts the venue boundary: reply-code taxonomy, the order
// placement interface, a signed REST client, and the instrument metadata cache.
package exchange

import (
	"errors"
	"fmt"
)

// Code is a venue reply code. The engine depends only on these numeric codes,
// never on transport details.
type Code int

// Reply codes the classifier knows about. Anything else defaults to retryable.
const (
	// CodeNone marks transport-level failures with no venue reply.
	CodeNone Code = 0
	// CodeInternalError is a transient venue-side fault.
	CodeInternalError Code = -1001
	// CodeUnauthorized means the request was not authorized for this endpoint.
	CodeUnauthorized Code = -1002
	// CodeTooManyRequests is the venue's rate limit reply.
	CodeTooManyRequests Code = -1003
	// CodeTimestampOutOfWindow means the signed timestamp drifted outside recvWindow.
	CodeTimestampOutOfWindow Code = -1021
	// CodeIllegalChars means a parameter contained characters the venue rejects.
	CodeIllegalChars Code = -1100
	// CodeBadPrecision means a price or quantity had more decimals than the filter allows.
	CodeBadPrecision Code = -1111
	// CodeFilterFailure means a price/quantity violated an exchange filter (tick, step, notional).
	CodeFilterFailure Code = -1013
	// CodeOrderRejected is the venue's generic new-order rejection, including insufficient balance.
	CodeOrderRejected Code = -2010
	// CodeKeyFormatInvalid means the API key itself is malformed.
	CodeKeyFormatInvalid Code = -2014
	// CodeTradingDisabled means the key lacks trading permission or the IP is not allowed.
	CodeTradingDisabled Code = -2015
)

// APIError is the structured failure the venue returns for a rejected request.
type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error %d: %s", e.Code, e.Message)
}

// CodeOf extracts the venue reply code from an error chain, or CodeNone for
// transport-level failures that never reached the venue.
func CodeOf(err error) Code {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeNone
}
