package slirc

import (
	"strconv"

	"github.com/horgh/config"
	"github.com/pkg/errors"
)

const defaultPort = 6667

// Config holds the gateway settings read from the key=value config file.
type Config struct {
	// SlackToken is the upstream API credential. Required.
	SlackToken string

	// Password, when set, is required from IRC clients via PASS.
	Password string

	// Port is the loopback TCP port for the IRC listener.
	Port int

	// UnixSocket, when set, overrides Port: the listener binds to this
	// filesystem path instead.
	UnixSocket string

	// DebugDump enables wire-level logging of both sides.
	DebugDump bool
}

// LoadConfig reads and validates the config file. Unknown keys are
// ignored.
func LoadConfig(path string) (*Config, error) {
	configMap, err := config.ReadStringMap(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := &Config{
		SlackToken: configMap["slack_token"],
		Password:   configMap["password"],
		Port:       defaultPort,
		UnixSocket: configMap["unix_socket"],
		DebugDump:  configMap["debug_dump"] == "1",
	}

	if cfg.SlackToken == "" {
		return nil, errors.New("missing required key: slack_token")
	}

	if v, ok := configMap["port"]; ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, errors.Errorf("invalid port: %q", v)
		}
		cfg.Port = port
	}

	return cfg, nil
}
