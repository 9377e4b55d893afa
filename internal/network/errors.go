package network

import "errors"

var (
	// ErrInvalidArgument is returned for bad configuration such as an
	// unsupported address family or a malformed address.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransport is returned when a socket cannot be created, bound or
	// written during setup.
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned when discovery gives up before an announce arrives.
	ErrTimeout = errors.New("discovery timed out")

	// ErrAddressFamilyMismatch is returned when the local and server
	// addresses are of different families and the local one is not a wildcard.
	ErrAddressFamilyMismatch = errors.New("address family mismatch")
)
