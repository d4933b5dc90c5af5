// Package errors provides structured, coded errors for the stratum CLI.
//
// Errors carry a stable code (e.g. "E101"), a category, and optional
// detail and fix suggestions. The CLI formats them for the terminal;
// everything else in the repository treats them as ordinary errors via
// errors.Is/As and Unwrap.
//
// Usage:
//
//	return errors.New("E101").
//	    WithDetail("No stratum.json found in " + dir).
//	    WithSuggestion("Create stratum.json or pass --config")
package errors
