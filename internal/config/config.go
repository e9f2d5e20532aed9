// Package config loads sequencer node configuration from flags/env/file via
// viper, in the style the pack's etcd/liftbridge-derived examples use for
// cluster node bootstrap.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the set of tunables named across §5 (timeouts) and §4.2/§4.3
// (cluster membership, endpoints, session cap).
type Config struct {
	MemberID          int32
	AppointedLeaderID int32

	ClientEndpoint string
	MemberEndpoint string
	LogEndpoint    string

	Peers []PeerConfig

	SessionTimeout     time.Duration
	HeartbeatInterval  time.Duration
	HeartbeatTimeout   time.Duration

	MaxConcurrentSessions int

	LogLevel string
}

// PeerConfig names one other cluster member's endpoints.
type PeerConfig struct {
	ID             int32
	ClientEndpoint string
	MemberEndpoint string
	LogEndpoint    string
}

// Load reads configuration from the given viper instance, applying defaults
// that mirror typical cluster magnitudes (heartbeat sub-second, session
// timeout on the order of seconds).
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("session_timeout", "10s")
	v.SetDefault("heartbeat_interval", "250ms")
	v.SetDefault("heartbeat_timeout", "2s")
	v.SetDefault("max_concurrent_sessions", 10)
	v.SetDefault("log_level", "info")

	cfg := &Config{
		MemberID:              int32(v.GetInt("member_id")),
		AppointedLeaderID:     int32(v.GetInt("appointed_leader_id")),
		ClientEndpoint:        v.GetString("client_endpoint"),
		MemberEndpoint:        v.GetString("member_endpoint"),
		LogEndpoint:           v.GetString("log_endpoint"),
		SessionTimeout:        v.GetDuration("session_timeout"),
		HeartbeatInterval:     v.GetDuration("heartbeat_interval"),
		HeartbeatTimeout:      v.GetDuration("heartbeat_timeout"),
		MaxConcurrentSessions: v.GetInt("max_concurrent_sessions"),
		LogLevel:              v.GetString("log_level"),
	}

	var peers []map[string]interface{}
	if err := v.UnmarshalKey("peers", &peers); err != nil {
		return nil, fmt.Errorf("unmarshal peers: %w", err)
	}
	for _, p := range peers {
		id, _ := p["id"].(int)
		cfg.Peers = append(cfg.Peers, PeerConfig{
			ID:             int32(id),
			ClientEndpoint: fmt.Sprint(p["client_endpoint"]),
			MemberEndpoint: fmt.Sprint(p["member_endpoint"]),
			LogEndpoint:    fmt.Sprint(p["log_endpoint"]),
		})
	}
	return cfg, nil
}
