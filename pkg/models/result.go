package models

// CalcResult wraps a calculator's output. Calculators never panic or fail
// hard on bad input: they validate up front and report problems here.
type CalcResult[T any] struct {
	Success  bool     `json:"success"`
	Data     T        `json:"data,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Ok wraps a successful calculation.
func Ok[T any](data T, warnings ...string) CalcResult[T] {
	return CalcResult[T]{Success: true, Data: data, Warnings: warnings}
}

// Failed wraps a calculation that could not be performed.
func Failed[T any](errs ...string) CalcResult[T] {
	return CalcResult[T]{Success: false, Errors: errs}
}
