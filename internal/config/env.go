package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overrides configuration values from MMP_* environment variables.
func ApplyEnv(c *Config) error {
	return applyEnv(c, os.LookupEnv)
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: not a number", key, v))
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: not a boolean", key, v))
			return
		}
		*dst = b
	}

	str("MMP_ROLE", &c.General.Role)
	str("MMP_LOG_LEVEL", &c.General.LogLevel)

	str("MMP_PAD_ADDRESS", &c.Pad.Address)
	num("MMP_ANNOUNCE_PORT", &c.Pad.AnnouncePort)
	num("MMP_PAD_WIDTH", &c.Pad.Width)
	num("MMP_PAD_HEIGHT", &c.Pad.Height)
	str("MMP_CANCEL_KEY", &c.Pad.CancelKey)
	flag("MMP_MDNS", &c.Pad.MDNS)
	flag("MMP_API_ENABLED", &c.Pad.APIEnabled)
	num("MMP_API_PORT", &c.Pad.APIPort)
	str("MMP_API_TOKEN", &c.Pad.APIToken)

	str("MMP_SERVER", &c.Subscriber.Server)
	str("MMP_CLIENT", &c.Subscriber.Client)
	num("MMP_TIMEOUT", &c.Subscriber.Timeout)
	num("MMP_RATE_LIMIT", &c.Subscriber.RateLimit)
	str("MMP_DISCOVERY", &c.Subscriber.Discovery)
	str("MMP_FLAGS", &c.Subscriber.Flags)
	num("MMP_OFFSET_X", &c.Subscriber.OffsetX)
	num("MMP_OFFSET_Y", &c.Subscriber.OffsetY)
	num("MMP_WIDTH", &c.Subscriber.Width)
	num("MMP_HEIGHT", &c.Subscriber.Height)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
