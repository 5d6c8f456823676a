// Package sentinel provides a string error type for declaring sentinel
// errors as constants.
//
// A const cannot be reassigned by importers, unlike a var created with
// errors.New, and errors.Is still matches it through %w wrapping.
package sentinel
