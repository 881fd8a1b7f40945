// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler sanitizes log output before it reaches the writer:
//   - Line content from scanned files (text, matched_text) is always masked
//   - Credential keys (token, password, authorization, ...) are masked
//   - Values that look like tokens (GitHub, AWS, JWT, bearer) are masked
//   - Passwords embedded in repository URLs are replaced with ***
//
// Even in verbose mode, sensitive values are masked so logs of a scan can
// be shared without re-leaking what the scan found.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("match",
//	    "repository", "https://github.com/acme/app", // kept
//	    "text", `api_key = "abc"`,                    // masked
//	)
package log
