package logger

import "log/slog"

type Backend string

const (
	BackendStd Backend = "std" // text handler on stdout
	BackendZap Backend = "zap" // zap JSON core behind a slog handler
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std in dev, zap elsewhere
	Debug   bool

	// zap burst sampling
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}
