// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gatewayconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_DefaultsFillZeroFields(t *testing.T) {
	is := is.New(t)
	path := writeTempConfig(t, "eavesdrop: false\n")
	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.MaxZones, 12)
	is.Equal(cfg.MaxRetries, 3)
	is.Equal(cfg.Eavesdrop, false)
}

func TestLoad_OverridesApply(t *testing.T) {
	is := is.New(t)
	path := writeTempConfig(t, `
max_zones: 4
max_retries: 5
timeouts:
  outer: 10s
known_devices:
  - id: "07:123456"
    class: DHW
throttles:
  - opcode: "3150"
    window: 30s
`)
	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.MaxZones, 4)
	is.Equal(cfg.MaxRetries, 5)

	outer, echo, reply, err := cfg.ParseTimeouts()
	is.NoErr(err)
	is.Equal(outer, 10*time.Second)
	is.Equal(echo, 500*time.Millisecond) // falls back to default
	is.Equal(reply, 500*time.Millisecond)

	class, ok := cfg.ClassOverride("07:123456")
	is.True(ok)
	is.Equal(class, "DHW")

	window, ok := cfg.ThrottleWindow("3150")
	is.True(ok)
	is.Equal(window, 30*time.Second)

	_, ok = cfg.ThrottleWindow("0000")
	is.Equal(ok, false)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/gateway.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
