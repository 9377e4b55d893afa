//go:build !windows

// Package osutils holds platform helpers the pad needs before it can serve.
package osutils

import (
	"github.com/rs/zerolog/log"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a stub for non-Windows platforms
func EnsureFirewallRule(name string, protocol string, port int) error {
	log.Debug().Str("module", "firewall").Str("rule", name).Msg("automatic rule management is only supported on Windows")
	return nil
}
