package exchange

// Class buckets a reply code by how the caller should react.
type Class int

const (
	// ClassRetryable covers transient faults worth another bounded attempt.
	ClassRetryable Class = iota
	// ClassNonRetryable covers request defects that will fail identically on retry.
	ClassNonRetryable
	// ClassBlocked covers account/administrative conditions a human must resolve.
	ClassBlocked
)

func (c Class) String() string {
	switch c {
	case ClassNonRetryable:
		return "non_retryable"
	case ClassBlocked:
		return "blocked"
	default:
		return "retryable"
	}
}

// classifications is the closed table driving Classify. Codes absent from the
// table are retryable: an unknown failure is worth one more bounded attempt,
// while mislabeling a permanent rejection as retryable only wastes the cap.
var classifications = map[Code]Class{
	CodeIllegalChars:     ClassNonRetryable,
	CodeBadPrecision:     ClassNonRetryable,
	CodeFilterFailure:    ClassNonRetryable,
	CodeOrderRejected:    ClassNonRetryable,
	CodeUnauthorized:     ClassBlocked,
	CodeKeyFormatInvalid: ClassBlocked,
	CodeTradingDisabled:  ClassBlocked,
}

// Classify maps a reply code to its reaction class. Total and deterministic.
func Classify(code Code) Class {
	if class, ok := classifications[code]; ok {
		return class
	}
	return ClassRetryable
}

// operatorActions holds the human checklist for every Blocked code.
var operatorActions = map[Code]string{
	CodeUnauthorized:     "verify the API key is active and authorized for the order endpoint",
	CodeKeyFormatInvalid: "re-issue the API key; the stored key value is malformed",
	CodeTradingDisabled:  "verify the API key has trading permission enabled and this host's IP is on the key's allowlist",
}

// OperatorAction returns the checklist a human should run for a blocked code.
// Codes without a dedicated entry get a generic pointer at the account state.
func OperatorAction(code Code) string {
	if action, ok := operatorActions[code]; ok {
		return action
	}
	return "inspect exchange account status and API key permissions"
}
