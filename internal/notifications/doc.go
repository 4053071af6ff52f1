// Package notifications publishes the outcome of each packaging run.
//
// The SNS implementation sends one message per run with string attributes
// for format, refid, service, outcome and, on failure, the error message.
// When no topic is configured a no-op implementation is returned so local
// runs work without AWS credentials.
package notifications
