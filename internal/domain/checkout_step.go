package domain

type Step int

const (
	StepCountrySelection Step = iota
	StepAddressCollection
	StepPayment
)

// String representation (for logging and JSON views)
func (s Step) String() string {
	switch s {
	case StepCountrySelection:
		return "country"
	case StepAddressCollection:
		return "address"
	case StepPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// Previous returns the step one position back. CountrySelection has no predecessor.
func (s Step) Previous() Step {
	if s == StepCountrySelection {
		return s
	}
	return s - 1
}
