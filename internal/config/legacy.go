package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// Flag bits used by the legacy settings, matching transform.Flags.
var legacyFlagNames = []struct {
	bit  int64
	name string
}{
	{1, "clip"},
	{2, "local_offset"},
	{4, "hide_remote"},
}

// ImportLegacyFile reads a settings file written by the earlier pad and
// subscriber applications and merges it into c.
func ImportLegacyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ImportLegacy(c, data)
}

// ImportLegacy merges legacy settings into c. Two shapes are understood:
// the pad's {"address":{"family":4,"port":N},"width":W,"height":H} and the
// subscriber's flat value names (Server, Flags, Timeout, RateLimit, OffsetX,
// OffsetY, Width, Height).
func ImportLegacy(c *Config, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: legacy settings are not JSON", ErrInvalidConfig)
	}
	root := gjson.ParseBytes(data)

	// pad settings
	if addr := root.Get("address"); addr.Exists() {
		host := "0.0.0.0"
		if addr.Get("family").Int() == 6 {
			host = "::"
		}
		c.Pad.Address = netip.AddrPortFrom(netip.MustParseAddr(host), uint16(addr.Get("port").Uint())).String()
		if v := root.Get("width"); v.Exists() {
			c.Pad.Width = int(v.Int())
		}
		if v := root.Get("height"); v.Exists() {
			c.Pad.Height = int(v.Int())
		}
	}

	// subscriber settings
	if v := root.Get("Server"); v.Exists() {
		server, err := legacyServer(v.String())
		if err != nil {
			return err
		}
		c.Subscriber.Server = server
	}
	if v := root.Get("Flags"); v.Exists() {
		c.Subscriber.Flags = legacyFlags(v.Int())
	}
	if v := root.Get("Timeout"); v.Exists() {
		c.Subscriber.Timeout = int(v.Int())
	}
	if v := root.Get("RateLimit"); v.Exists() {
		c.Subscriber.RateLimit = int(v.Int())
	}
	if v := root.Get("OffsetX"); v.Exists() {
		c.Subscriber.OffsetX = int(v.Int())
	}
	if v := root.Get("OffsetY"); v.Exists() {
		c.Subscriber.OffsetY = int(v.Int())
	}
	if v := root.Get("Width"); v.Exists() {
		c.Subscriber.Width = int(v.Int())
	}
	if v := root.Get("Height"); v.Exists() {
		c.Subscriber.Height = int(v.Int())
	}

	return nil
}

// legacyServer accepts "ip:port", a bare ip, or an empty string meaning discover.
func legacyServer(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0.0.0.0:47600", nil
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.String(), nil
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return netip.AddrPortFrom(addr, 47600).String(), nil
	}
	return "", fmt.Errorf("%w: legacy Server %q", ErrInvalidConfig, s)
}

func legacyFlags(bits int64) string {
	var names []string
	for _, f := range legacyFlagNames {
		if bits&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}
