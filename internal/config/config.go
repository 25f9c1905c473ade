package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "duelink.fly.dev"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	// DefaultSyncInterval rate-limits outbound state snapshots; faster
	// updates are queued and flushed as a batch.
	DefaultSyncInterval = 100 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	// Domain is the rendezvous server domain
	Domain string

	// WebSocketURL and APIURL are constructed from domain
	WebSocketURL string
	APIURL       string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// SyncInterval between outbound state snapshots
	SyncInterval time.Duration

	// Insecure switches to ws/http for local development servers
	Insecure bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Insecure   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	if turnUser == "" {
		turnUser = DefaultTURNUser
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}
	if turnPass == "" {
		turnPass = DefaultTURNPass
	}

	syncInterval := DefaultSyncInterval
	if raw := os.Getenv("SYNC_INTERVAL_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid SYNC_INTERVAL_MS: %q", raw)
		}
		syncInterval = time.Duration(ms) * time.Millisecond
	}

	wsScheme, httpScheme := "wss", "https"
	if opts.Insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		APIURL:       fmt.Sprintf("%s://%s/api/v1", httpScheme, domain),
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		SyncInterval: syncInterval,
		Insecure:     opts.Insecure,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
