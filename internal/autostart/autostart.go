// Package autostart registers the pad or subscriber to start on login.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const label = "com.magicmouse.agent"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=MagicMouse
Exec={{.Command}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

type entry struct {
	Label          string
	ExecutablePath string
	Args           []string
}

// Command is the quoted command line.
func (e entry) Command() string {
	parts := []string{quote(e.ExecutablePath)}
	for _, a := range e.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'\\") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// Enable starts the current executable with args on login.
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	e := entry{Label: label, ExecutablePath: execPath, Args: args}

	switch runtime.GOOS {
	case "darwin":
		return writeEntry(macPlistPath, macLaunchAgentPlist, e)
	case "windows":
		return enableWindows(e)
	case "linux", "freebsd", "openbsd", "netbsd":
		return writeEntry(xdgEntryPath, xdgDesktopEntry, e)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable removes the login entry. It is not an error when none exists.
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return removeEntry(macPlistPath)
	case "windows":
		return disableWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return removeEntry(xdgEntryPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return entryExists(macPlistPath)
	case "windows":
		return isEnabledWindows()
	case "linux", "freebsd", "openbsd", "netbsd":
		return entryExists(xdgEntryPath)
	default:
		return false
	}
}

func macPlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

func xdgEntryPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "magicmouse.desktop"), nil
}

func render(text string, e entry) ([]byte, error) {
	tmpl, err := template.New("autostart").Parse(text)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEntry(pathFn func() (string, error), text string, e entry) error {
	path, err := pathFn()
	if err != nil {
		return err
	}
	data, err := render(text, e)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func removeEntry(pathFn func() (string, error)) error {
	path, err := pathFn()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func entryExists(pathFn func() (string, error)) bool {
	path, err := pathFn()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
