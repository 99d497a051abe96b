// Package validation provides construction-time checks for pool and
// scheduler configuration across the batchflow library.
//
// Every helper returns a *errors.ValidationError, so callers can detect
// configuration failures with errors.Is(err, errors.ErrInvalidConfiguration)
// and report them before any goroutine is started.
package validation
