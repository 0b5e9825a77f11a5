package gateway

import "errors"

// CapabilityError is the expected, recoverable failure mode of a capability
// call. Processors convert it into a FAILED payment event and continue the
// saga; it never aborts a whole request on its own.
type CapabilityError struct {
	// TemporaryFailure hints that retrying the same call later could
	// succeed (gateway timeout, rate limit) as opposed to a hard decline.
	TemporaryFailure bool
	// ExternalMessage is safe to show the customer.
	ExternalMessage string
	// InternalMessage is for operators.
	InternalMessage string
	// StructuredMessages carries gateway-specific error details keyed by
	// field or error code.
	StructuredMessages map[string]string
}

func (e *CapabilityError) Error() string {
	if e.InternalMessage != "" {
		return "gateway: " + e.InternalMessage
	}
	return "gateway: " + e.ExternalMessage
}

// AsCapabilityError normalizes any error returned from a capability call.
// Unknown errors (transport failures and the like) become non-temporary
// capability errors with the raw error as the internal message.
func AsCapabilityError(err error) *CapabilityError {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce
	}
	return &CapabilityError{
		ExternalMessage: "payment could not be processed",
		InternalMessage: err.Error(),
	}
}
