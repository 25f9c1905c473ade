package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultDomain, cfg.Domain)
	require.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	require.Equal(t, "https://"+DefaultDomain+"/api/v1", cfg.APIURL)
	require.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	require.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())
	require.Nil(t, cfg.GetTURNServers())
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("DOMAIN", "env.example.com")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)
	require.Equal(t, "flag.example.com", cfg.Domain)

	cfg, err = Load(Options{})
	require.NoError(t, err)
	require.Equal(t, "env.example.com", cfg.Domain)
}

func TestLoadInsecureSchemes(t *testing.T) {
	cfg, err := Load(Options{Domain: "localhost:8080", Insecure: true})
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	require.Equal(t, "http://localhost:8080/api/v1", cfg.APIURL)
}

func TestLoadSyncInterval(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_MS", "250")
	cfg, err := Load(Options{})
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.SyncInterval)

	t.Setenv("SYNC_INTERVAL_MS", "not-a-number")
	_, err = Load(Options{})
	require.Error(t, err)
}

func TestTURNServers(t *testing.T) {
	cfg, err := Load(Options{
		TURNServer: "turn:relay.example.com",
		TURNUser:   "user",
		TURNPass:   "pass",
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"turn:relay.example.com:3478?transport=udp",
		"turn:relay.example.com:3478?transport=tcp",
	}, cfg.GetTURNServers())

	user, pass := cfg.GetTURNCredentials()
	require.Equal(t, "user", user)
	require.Equal(t, "pass", pass)
}
