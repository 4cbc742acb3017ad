// Package config loads and validates NetDash Core configuration.
//
// Configuration is read from a single YAML file with three layers of
// precedence: built-in defaults, file values, then NETDASH_* environment
// variable overrides. The same file is shared by the hub daemon
// (cmd/netdash) and the encoder watcher daemon (cmd/encoderd), so pin
// assignments and the hub URL live in one place.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	log := logging.New(cfg.Logging, version)
//
// All duration-valued settings are stored as integer milliseconds or
// seconds in YAML and exposed as time.Duration via helper methods
// (MotorStep, MotorPause, GuardMargin).
package config
