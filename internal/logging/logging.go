// Package logging centralizes the zap setup used across the module,
// mirroring the serverLogger/logFields idiom in server.go: one
// SugaredLogger per agent, with a handful of standard fields (member id,
// role, consensus state) that the Fields helper prepends to a log line.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a SugaredLogger from zap's production (JSON) config at the
// given level name ("debug", "info", "warn", "error").
func New(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// Fields is the logFields(agent, kvs...) helper: it prepends standard
// identifying fields (member id, role, consensus state) before the
// caller-supplied key/value pairs.
func Fields(memberID int32, role, state string, kvs ...interface{}) []interface{} {
	base := []interface{}{"member_id", memberID, "role", role, "state", state}
	return append(base, kvs...)
}
