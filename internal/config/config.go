// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides facilities for resolving configuration
// parameters from the hosting environment: the few values the core needs
// to know about (a Cloud project, for the optional Stackdriver log sink)
// and small env-var helpers the CLI commands in cmd/catalogmirror build
// on top of.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration that is global to a process, as opposed to
// per-invocation CLI flags.
type Config struct {
	// ProjectID is the GCP project used for the optional Stackdriver log
	// sink (see internal/log.UseStackdriver). Empty means "don't use it".
	ProjectID string
}

// Init reads Config from the environment.
func Init() *Config {
	return &Config{ProjectID: os.Getenv("GOOGLE_CLOUD_PROJECT")}
}

// GetEnv looks up the environment variable key, returning fallback if it
// is unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt is GetEnv parsed as an int; an unparseable value also falls
// back to fallback.
func GetEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetEnvDuration is GetEnv parsed as a time.Duration.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// GetEnvBool is GetEnv parsed as a bool ("1", "true", "t" are true; the
// rest, including unset, are false).
func GetEnvBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// DebugAddr returns the network address on which to serve debugging
// information, honoring a DEBUG_PORT override.
func DebugAddr(dflt string) string {
	if port := os.Getenv("DEBUG_PORT"); port != "" {
		return ":" + port
	}
	return dflt
}
