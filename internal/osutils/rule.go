package osutils

import (
	"strconv"
	"strings"
)

// ruleMatches reports whether netsh output describes an allow rule for the
// given protocol and port.
func ruleMatches(output, name, protocol string, port int) bool {
	if !strings.Contains(output, name) || !strings.Contains(output, "Allow") {
		return false
	}

	var portOK, protoOK bool
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "LocalPort":
			portOK = value == strconv.Itoa(port)
		case "Protocol":
			protoOK = strings.EqualFold(value, protocol)
		}
	}
	return portOK && protoOK
}
