// Package settings manages persistent racctl settings and layers them with
// environment variables (RACCTL_<KEY>) and command-line flags.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: RACCTL_HOST, RACCTL_POLL_INTERVAL...
const EnvPrefix = "RACCTL"

// Probe kinds.
const (
	ProbeDevice = "device"
	ProbeICMP   = "icmp"
)

// Settings holds connection defaults and convergence timings.
type Settings struct {
	Host           string        `yaml:"host,omitempty" mapstructure:"host"`
	Port           int           `yaml:"port,omitempty" mapstructure:"port"`
	User           string        `yaml:"user,omitempty" mapstructure:"user"`
	Prompt         string        `yaml:"prompt,omitempty" mapstructure:"prompt"`
	KnownHosts     string        `yaml:"known_hosts,omitempty" mapstructure:"known_hosts"`
	CommandTimeout time.Duration `yaml:"command_timeout,omitempty" mapstructure:"command_timeout"`
	RateLimit      float64       `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"` // commands per second; 0 is unlimited
	AuditLog       string        `yaml:"audit_log,omitempty" mapstructure:"audit_log"`

	Probe           string        `yaml:"probe,omitempty" mapstructure:"probe"`
	ApplyRetryDelay time.Duration `yaml:"apply_retry_delay,omitempty" mapstructure:"apply_retry_delay"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty" mapstructure:"poll_interval"`
	ProbeInterval   time.Duration `yaml:"probe_interval,omitempty" mapstructure:"probe_interval"`
	HaltOnTimeout   bool          `yaml:"halt_on_timeout,omitempty" mapstructure:"halt_on_timeout"`
	Parallel        bool          `yaml:"parallel,omitempty" mapstructure:"parallel"`
}

// Key describes one setting.
type Key struct {
	Name    string
	Help    string
	Default any
}

// Keys lists every setting in display order.
var Keys = []Key{
	{"host", "Management console host", ""},
	{"port", "SSH port", 22},
	{"user", "Console login user", "root"},
	{"prompt", "Console shell prompt", "$ "},
	{"known_hosts", "known_hosts file for host key verification (empty disables it)", ""},
	{"command_timeout", "Per-command timeout", 2 * time.Minute},
	{"rate_limit", "Commands per second (0 is unlimited)", 0.0},
	{"audit_log", "Audit log path (empty disables auditing)", ""},
	{"probe", "Reachability probe: device or icmp", ProbeDevice},
	{"apply_retry_delay", "Delay before each network apply retry", 30 * time.Second},
	{"poll_interval", "Interval between address polls", 30 * time.Second},
	{"probe_interval", "Interval between reachability probes", 15 * time.Second},
	{"halt_on_timeout", "Stop a run at the first target timeout", false},
	{"parallel", "Poll and probe targets concurrently", false},
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "racctl_settings.yaml"
	}
	return filepath.Join(home, ".racctl", "settings.yaml")
}

// DefaultAuditLogPath returns where the audit log goes when audit_log is "default".
func DefaultAuditLogPath() string {
	return filepath.Join(filepath.Dir(DefaultSettingsPath()), "audit.log")
}

func lookupKey(name string) (Key, bool) {
	name = strings.ReplaceAll(name, "-", "_")
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

func keyNames() string {
	names := make([]string, 0, len(Keys))
	for _, k := range Keys {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// newViper layers defaults, the settings file and RACCTL_* variables.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, k := range Keys {
		v.SetDefault(k.Name, k.Default)
	}
	return v
}

// Load resolves the effective settings: defaults, then the file at path, then
// RACCTL_* variables, then any flag in flags that was set and is named after a
// key (dashes or underscores). A missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
	}
	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if k, ok := lookupKey(f.Name); ok && bindErr == nil {
				bindErr = v.BindPFlag(k.Name, f)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// LoadFile reads only the settings file, without defaults or overrides.
// It is what "settings set" edits.
func LoadFile(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Set parses value into the named setting.
func (s *Settings) Set(name, value string) error {
	k, ok := lookupKey(name)
	if !ok {
		return fmt.Errorf("unknown setting: %s (valid: %s)", name, keyNames())
	}
	var err error
	switch k.Name {
	case "host":
		s.Host = value
	case "port":
		s.Port, err = strconv.Atoi(value)
	case "user":
		s.User = value
	case "prompt":
		s.Prompt = value
	case "known_hosts":
		s.KnownHosts = value
	case "command_timeout":
		s.CommandTimeout, err = time.ParseDuration(value)
	case "rate_limit":
		s.RateLimit, err = strconv.ParseFloat(value, 64)
	case "audit_log":
		s.AuditLog = value
	case "probe":
		if value != ProbeDevice && value != ProbeICMP {
			return fmt.Errorf("probe must be %s or %s", ProbeDevice, ProbeICMP)
		}
		s.Probe = value
	case "apply_retry_delay":
		s.ApplyRetryDelay, err = time.ParseDuration(value)
	case "poll_interval":
		s.PollInterval, err = time.ParseDuration(value)
	case "probe_interval":
		s.ProbeInterval, err = time.ParseDuration(value)
	case "halt_on_timeout":
		s.HaltOnTimeout, err = strconv.ParseBool(value)
	case "parallel":
		s.Parallel, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", k.Name, err)
	}
	return nil
}

// Get renders the named setting; zero values render as "".
func (s *Settings) Get(name string) (string, error) {
	k, ok := lookupKey(name)
	if !ok {
		return "", fmt.Errorf("unknown setting: %s (valid: %s)", name, keyNames())
	}
	var v any
	switch k.Name {
	case "host":
		v = s.Host
	case "port":
		v = s.Port
	case "user":
		v = s.User
	case "prompt":
		v = s.Prompt
	case "known_hosts":
		v = s.KnownHosts
	case "command_timeout":
		v = s.CommandTimeout
	case "rate_limit":
		v = s.RateLimit
	case "audit_log":
		v = s.AuditLog
	case "probe":
		v = s.Probe
	case "apply_retry_delay":
		v = s.ApplyRetryDelay
	case "poll_interval":
		v = s.PollInterval
	case "probe_interval":
		v = s.ProbeInterval
	case "halt_on_timeout":
		v = s.HaltOnTimeout
	case "parallel":
		v = s.Parallel
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		if x == 0 {
			return "", nil
		}
	case float64:
		if x == 0 {
			return "", nil
		}
	case time.Duration:
		if x == 0 {
			return "", nil
		}
	case bool:
		if !x {
			return "", nil
		}
	}
	return fmt.Sprint(v), nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
