package greenops

// constError lets sentinel errors be declared as constants of a string type.
type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrNegativeValue is returned when a total is below zero. Deltas go
	// through CalculateDelta instead.
	ErrNegativeValue = constError("negative carbon value")

	// ErrCalculationOverflow is returned for NaN, infinite or overflowing values.
	ErrCalculationOverflow = constError("calculation overflow")
)
