//go:build windows

package osutils

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnsureFirewallRule checks that an inbound allow rule named name exists for
// port, and otherwise creates it with PowerShell, asking for elevation when
// the process is not an administrator. protocol is "UDP" or "TCP".
func EnsureFirewallRule(name string, protocol string, port int) error {
	logger := log.With().Str("module", "firewall").Str("rule", name).Int("port", port).Logger()
	protocol = strings.ToUpper(protocol)

	output, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+name).CombinedOutput()
	if err == nil && ruleMatches(string(output), name, protocol, port) {
		logger.Debug().Msg("rule present")
		return nil
	}
	logger.Info().Str("protocol", protocol).Msg("creating firewall rule")

	// No -Program restriction, so the rule survives the binary moving
	psCommand := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol %s -Action Allow -Profile Any",
		name, name, port, protocol,
	)

	if IsAdmin() {
		cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to create firewall rule: %w (output: %s)", err, string(output))
		}
		logger.Info().Msg("firewall rule applied")
		return nil
	}

	verbPtr, _ := syscall.UTF16PtrFromString("runas")
	exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
	argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

	var showCmd int32 = 0 // SW_HIDE
	if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd); err != nil {
		return fmt.Errorf("failed to launch elevated powershell: %w", err)
	}
	logger.Warn().Msg("not elevated, UAC prompt requested")
	return nil
}
