package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.Port != 22 || s.User != "root" || s.Prompt != "$ " {
		t.Errorf("connection defaults = %+v", s)
	}
	if s.Probe != ProbeDevice {
		t.Errorf("Probe = %q, want %q", s.Probe, ProbeDevice)
	}
	if s.ApplyRetryDelay != 30*time.Second || s.PollInterval != 30*time.Second || s.ProbeInterval != 15*time.Second {
		t.Errorf("timing defaults = %s/%s/%s", s.ApplyRetryDelay, s.PollInterval, s.ProbeInterval)
	}
	if s.HaltOnTimeout || s.Parallel {
		t.Error("halt_on_timeout and parallel should default to false")
	}
}

func TestLoad_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	file := &Settings{Host: "cmc-file", User: "admin", PollInterval: 10 * time.Second}
	if err := file.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	t.Setenv("RACCTL_USER", "env-user")
	t.Setenv("RACCTL_PROBE_INTERVAL", "5s")
	t.Setenv("RACCTL_PARALLEL", "true")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("host", "", "")
	flags.Int("port", 0, "")
	flags.Bool("halt-on-timeout", false, "")
	flags.String("password", "", "")
	if err := flags.Parse([]string{"--host", "cmc-flag", "--halt-on-timeout"}); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.Host != "cmc-flag" {
		t.Errorf("Host = %q, flag should win", s.Host)
	}
	if s.User != "env-user" {
		t.Errorf("User = %q, env should beat the file", s.User)
	}
	if s.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s, want file value", s.PollInterval)
	}
	if s.ProbeInterval != 5*time.Second || !s.Parallel {
		t.Errorf("env overrides lost: %s %v", s.ProbeInterval, s.Parallel)
	}
	if !s.HaltOnTimeout {
		t.Error("dashed flag should bind to halt_on_timeout")
	}
	if s.Port != 22 {
		t.Errorf("Port = %d, unset flag must not override the default", s.Port)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("host: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should fail on malformed YAML")
	}
}

func TestSettings_SaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	original := &Settings{
		Host:          "cmc.lab",
		Port:          2222,
		KnownHosts:    "/etc/ssh/known_hosts",
		RateLimit:     2.5,
		Probe:         ProbeICMP,
		PollInterval:  time.Minute,
		HaltOnTimeout: true,
	}
	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("LoadFile() = %+v, want %+v", loaded, original)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("settings file mode = %v, want 0600", info.Mode().Perm())
	}

	empty, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil || *empty != (Settings{}) {
		t.Errorf("LoadFile(missing) = %+v, %v", empty, err)
	}
}

func TestSettings_SetGet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"host", "cmc.lab", "cmc.lab"},
		{"port", "2222", "2222"},
		{"user", "admin", "admin"},
		{"known-hosts", "/tmp/kh", "/tmp/kh"},
		{"command_timeout", "90s", "1m30s"},
		{"rate_limit", "4", "4"},
		{"probe", "icmp", "icmp"},
		{"poll_interval", "45s", "45s"},
		{"halt_on_timeout", "true", "true"},
		{"parallel", "false", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := &Settings{}
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%s, %s): %v", tt.key, tt.value, err)
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%s): %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%s) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSettings_SetErrors(t *testing.T) {
	s := &Settings{}
	if err := s.Set("network", "x"); err == nil || !strings.Contains(err.Error(), "unknown setting") {
		t.Errorf("Set(network) err = %v", err)
	}
	if err := s.Set("port", "twenty-two"); err == nil {
		t.Error("Set(port) should reject non-numbers")
	}
	if err := s.Set("probe", "tcp"); err == nil {
		t.Error("Set(probe) should reject unknown probes")
	}
	if err := s.Set("poll_interval", "soon"); err == nil {
		t.Error("Set(poll_interval) should reject bad durations")
	}
	if _, err := s.Get("network"); err == nil {
		t.Error("Get(network) should fail")
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{Host: "cmc", Port: 22, Parallel: true}
	s.Clear()
	if *s != (Settings{}) {
		t.Errorf("Clear() left %+v", s)
	}
}

func TestDefaultPaths(t *testing.T) {
	p := DefaultSettingsPath()
	if !strings.HasSuffix(p, filepath.Join(".racctl", "settings.yaml")) && p != "racctl_settings.yaml" {
		t.Errorf("DefaultSettingsPath() = %q", p)
	}
	if filepath.Base(DefaultAuditLogPath()) != "audit.log" {
		t.Errorf("DefaultAuditLogPath() = %q", DefaultAuditLogPath())
	}
}
