// Package util holds validation helpers and error types shared by the
// configuration and startup code.
//
// # Error Conventions
//
//   - Sentinel errors (errors.New) for stable conditions that callers
//     check with errors.Is(). Example: ErrConfigInvalid.
//   - Structured error types for errors that carry extra fields
//     (ConfigError). Each type implements Error(), Unwrap() and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping.
package util
