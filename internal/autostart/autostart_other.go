//go:build !windows

package autostart

import "errors"

var errNotWindows = errors.New("autostart: registry entries are only used on Windows")

func enableWindows(entry) error { return errNotWindows }

func disableWindows() error { return errNotWindows }

func isEnabledWindows() bool { return false }
