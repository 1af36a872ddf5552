// Package config loads the flat key=value configuration file described in
// the signaling server's operations model: server_addr, users_file,
// max_clients, log_file, video_width, video_height, video_fps, one per
// line, '#' for comments. A missing file is not an error; unknown keys
// and malformed numeric values are silently ignored, matching the
// original implementation's forgiving load behavior.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Config holds the signaling daemon's tunable parameters.
type Config struct {
	ServerAddr  string
	UsersFile   string
	MaxClients  int
	LogFile     string
	VideoWidth  uint32
	VideoHeight uint32
	VideoFPS    uint32
}

// Default returns the built-in defaults, used verbatim when no config
// file is present and as the base for Load.
func Default() *Config {
	return &Config{
		ServerAddr:  "127.0.0.1:8443",
		UsersFile:   "users.txt",
		MaxClients:  100,
		LogFile:     "roomrtc.log",
		VideoWidth:  640,
		VideoHeight: 480,
		VideoFPS:    30,
	}
}

// Load reads a key=value config file at path. If path does not exist,
// Load returns the defaults with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries := parseKV(f)

	if v, ok := entries["server_addr"]; ok {
		cfg.ServerAddr = v
	}
	if v, ok := entries["users_file"]; ok {
		cfg.UsersFile = v
	}
	if v, ok := entries["max_clients"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxClients = n
		}
	}
	if v, ok := entries["log_file"]; ok {
		cfg.LogFile = v
	}
	if v, ok := entries["video_width"]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.VideoWidth = uint32(n)
		}
	}
	if v, ok := entries["video_height"]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.VideoHeight = uint32(n)
		}
	}
	if v, ok := entries["video_fps"]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.VideoFPS = uint32(n)
		}
	}

	return cfg, nil
}

func parseKV(f *os.File) map[string]string {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		entries[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return entries
}
