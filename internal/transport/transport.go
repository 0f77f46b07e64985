// SPDX-License-Identifier: MIT

// Package transport publishes measurements to consumers outside the process.
package transport

// Transport defines a generic interface for sending measurements.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}
