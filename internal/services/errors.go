// Package services connects the fleet to the message bus: consuming telemetry,
// publishing alerts as they fire and publishing periodic reports.
package services

import "errors"

// ErrMalformedMessage is returned when a bus payload cannot be decoded into a
// usable message
var ErrMalformedMessage = errors.New("malformed message")
