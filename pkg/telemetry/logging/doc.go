// Package logging configures structured logging for gigaformat.
//
// Logs are emitted through log/slog with a JSON or text handler. Listing
// text passes through the service, so the handler can redact phone
// numbers, VIN codes, and credentials before anything reaches the log
// sink.
package logging
