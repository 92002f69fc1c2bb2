// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks sensitive information before it reaches the
// output:
//   - HTTP headers and cookies configured per domain
//   - Secret values detected by pattern matching (bearer tokens, JWTs, keys)
//   - Passwords embedded in URLs
//   - Signed query parameters (sig, token, X-Amz-Signature, ...) in URL
//     attributes such as "url" and "seed"
//
// Even in verbose mode, sensitive values are masked so that logs can be
// shared safely.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("script confirmed", "url", "https://example.com/a.js?sig=abc")
//	// url=https://example.com/a.js?sig=%2A%2A%2AREDACTED%2A%2A%2A
//	slog.SetDefault(logger)
package log
