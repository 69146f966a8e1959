package payment

type FailureKind string

const (
	KindCard       FailureKind = "card_error"
	KindValidation FailureKind = "validation_error"
	KindUnexpected FailureKind = "unexpected"
)

const (
	cardFallbackMessage = "There was a problem with your card details."
	unexpectedMessage   = "An unexpected error occurred while processing the payment."
)

// Outcome is what the payment widget reports after a confirmation attempt.
type Outcome struct {
	Succeeded    bool   `json:"succeeded"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
}

// Failure is a confirmation error ready to show to the customer.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Classify maps a widget error to a failure. Card and validation errors keep the
// widget's message; anything else gets a generic one.
func Classify(errorType, message string) Failure {
	switch FailureKind(errorType) {
	case KindCard, KindValidation:
		if message == "" {
			message = cardFallbackMessage
		}
		return Failure{Kind: FailureKind(errorType), Message: message}
	default:
		return Failure{Kind: KindUnexpected, Message: unexpectedMessage}
	}
}
