package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultStatePath    = "~/.crewdeck/state.db"
	defaultSessionPath  = "~/.crewdeck/session.json"
	defaultLogLevel     = "info"
	defaultHistoryLimit = 200
)

func must(ok bool, msg string) {
	if msg == "" {
		panic("assertion message must not be empty")
	}
	if !ok {
		panic(msg)
	}
}

func Load(path string) (*Config, error) {
	must(path != "", "config path must not be empty")
	must(strings.TrimSpace(path) != "", "config path must not be blank")

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %v", path, err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config %q: %v", path, err)
	}

	applyDefaults(&c)
	if err := expandPaths(&c); err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	must(c.StatePath != "", "state path must not be empty after load")
	must(c.SessionPath != "", "session path must not be empty after load")
	return &c, nil
}

func applyDefaults(c *Config) {
	must(c != nil, "config pointer must not be nil")
	must(defaultHistoryLimit > 0, "history limit default must be positive")

	if c.StatePath == "" {
		c.StatePath = defaultStatePath
	}
	if c.SessionPath == "" {
		c.SessionPath = defaultSessionPath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Engine.HistoryLimit == 0 {
		c.Engine.HistoryLimit = defaultHistoryLimit
	}

	must(c.StatePath != "", "state path must not be empty after defaults")
	must(c.Engine.HistoryLimit > 0, "history limit must be positive after defaults")
}

func expandPaths(c *Config) error {
	must(c != nil, "config pointer must not be nil")
	must(c.StatePath != "", "state path must be set before expansion")

	s, err := expandHome(c.StatePath)
	if err != nil {
		return fmt.Errorf("state_path: %v", err)
	}
	p, err := expandHome(c.SessionPath)
	if err != nil {
		return fmt.Errorf("session_path: %v", err)
	}
	c.StatePath = s
	c.SessionPath = p

	must(c.StatePath != "", "state path expansion produced empty path")
	must(c.SessionPath != "", "session path expansion produced empty path")
	return nil
}

func expandHome(p string) (string, error) {
	must(p != "", "path must not be empty")
	must(strings.TrimSpace(p) == p, "path must be trimmed")

	if p[0] != '~' {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %v", err)
	}
	if p == "~" {
		must(h != "", "home dir must not be empty")
		return h, nil
	}
	if strings.HasPrefix(p, "~/") {
		o := filepath.Join(h, p[2:])
		must(o != "", "expanded path must not be empty")
		return o, nil
	}
	return "", fmt.Errorf("unsupported home path %q", p)
}

func validate(c Config) error {
	must(c.StatePath != "", "state path must be set before validation")
	must(c.SessionPath != "", "session path must be set before validation")

	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %v", err)
	}
	v := map[string]bool{"http": true, "https": true, "ws": true, "wss": true}
	must(len(v) == 4, "scheme set must contain four values")
	if !v[u.Scheme] {
		return fmt.Errorf("server.base_url scheme must be one of http, https, ws, wss")
	}
	if c.Engine.LoadingTimeoutSec < 0 {
		return fmt.Errorf("engine.loading_timeout_sec must not be negative")
	}
	if c.Engine.HistoryLimit <= 0 {
		return fmt.Errorf("engine.history_limit must be greater than zero")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}
