package config

// Config is the complete runtime configuration loaded from one JSON file.
type Config struct {
	Server      ServerConfig `json:"server"`
	Engine      EngineConfig `json:"engine"`
	StatePath   string       `json:"state_path"`
	SessionPath string       `json:"session_path"`
	LogLevel    string       `json:"log_level"`
}

type ServerConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

type EngineConfig struct {
	LoadingTimeoutSec int `json:"loading_timeout_sec"`
	HistoryLimit      int `json:"history_limit"`
}
