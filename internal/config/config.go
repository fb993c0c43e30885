package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/ini.v1"
)

// DefaultLogFile is used unless --log or --syslog is given.
const DefaultLogFile = "/tmp/display_priority_manager.log"

// Mode selects the fix strategy.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeKScreen Mode = "kscreen"
	ModeConfig  Mode = "config"
	ModeLibrary Mode = "library"
	ModeCheck   Mode = "check"
	ModeDaemon  Mode = "daemon"
)

// Modes lists every mode accepted on the command line, in help order.
var Modes = []Mode{ModeAuto, ModeKScreen, ModeConfig, ModeLibrary, ModeCheck, ModeDaemon}

// ParseMode converts a user-supplied string to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode: %q (want one of %s)", s, modeList())
}

func modeList() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// configSearchPaths lists config file paths to try, in priority order.
var configSearchPaths = []string{
	"/etc/display-priority-manager.yaml",
	"/etc/display-priority-manager.conf", // legacy INI
}

// FindConfigPath returns the first existing config file from the search paths,
// or "" when none exists. Running without a config file is supported.
func FindConfigPath() string {
	paths := append([]string(nil), configSearchPaths...)
	if xdg := userConfigPath(); xdg != "" {
		paths = append(paths, xdg)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func userConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "display-priority-manager", "config.yaml")
}

// Config holds all configuration values for the display priority manager
type Config struct {
	Fix       FixConfig       `koanf:"fix"`
	Log       LogConfig       `koanf:"log"`
	Hardware  HardwareConfig  `koanf:"hardware"`
	KScreen   KScreenConfig   `koanf:"kscreen"`
	Notify    NotifyConfig    `koanf:"notify"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// FixConfig controls the retry loop and the selected strategy.
type FixConfig struct {
	Mode       Mode `koanf:"mode"`
	Force      bool `koanf:"force"`
	DryRun     bool `koanf:"dry_run"`
	MaxRetries int  `koanf:"max_retries"`
	RetryDelay int  `koanf:"retry_delay"` // seconds
}

// RetryInterval returns RetryDelay as a duration.
func (f FixConfig) RetryInterval() time.Duration {
	return time.Duration(f.RetryDelay) * time.Second
}

// LogConfig selects log sinks and verbosity.
type LogConfig struct {
	Verbose bool   `koanf:"verbose"`
	Debug   bool   `koanf:"debug"`
	File    string `koanf:"file"`
	Syslog  bool   `koanf:"syslog"`
}

// HardwareConfig describes the chassis and GPU layout that needs the fix.
type HardwareConfig struct {
	Vendor            string `koanf:"vendor"`
	Product           string `koanf:"product"`
	DMIDir            string `koanf:"dmi_dir"`
	DriverPath        string `koanf:"driver_path"`
	DRMDir            string `koanf:"drm_dir"`
	LspciPath         string `koanf:"lspci_path"`
	DiscretePattern   string `koanf:"discrete_pattern"`
	IntegratedPattern string `koanf:"integrated_pattern"`
	MinDisplays       int    `koanf:"min_displays"`
}

// KScreenConfig holds kscreen-doctor settings.
type KScreenConfig struct {
	DoctorPath       string   `koanf:"doctor_path"`
	Shell            string   `koanf:"shell"`
	InternalPatterns []string `koanf:"internal_patterns"`
	MaxNameLength    int      `koanf:"max_name_length"`
}

// NotifyConfig controls the desktop notification sent after a fix.
type NotifyConfig struct {
	Enabled   bool   `koanf:"enabled"`
	AppName   string `koanf:"app_name"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Fix: FixConfig{
			Mode:       ModeAuto,
			MaxRetries: 3,
			RetryDelay: 5,
		},
		Log: LogConfig{
			File: DefaultLogFile,
		},
		Hardware: HardwareConfig{
			Vendor:            "Dell",
			Product:           "Precision 7780",
			DMIDir:            "/sys/class/dmi/id",
			DriverPath:        "/proc/driver/nvidia",
			DRMDir:            "/sys/class/drm",
			LspciPath:         "lspci",
			DiscretePattern:   "(?i)nvidia",
			IntegratedPattern: "(?i)intel.*(graphics|vga)",
			MinDisplays:       2,
		},
		KScreen: KScreenConfig{
			DoctorPath:       "kscreen-doctor",
			Shell:            "/bin/sh",
			InternalPatterns: []string{"eDP", "LVDS"},
			MaxNameLength:    63,
		},
		Notify: NotifyConfig{
			Enabled:   false,
			AppName:   "display-priority-manager",
			TimeoutMS: 5000,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration from a file, auto-detecting format by extension.
// .yaml/.yml → YAML (Koanf), anything else → legacy INI. An empty path loads
// defaults only. Environment variables (DPM_ prefix) always override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		k := koanf.New(".")
		if err := loadDefaults(k); err != nil {
			return nil, err
		}
		if err := loadEnvOverrides(k); err != nil {
			return nil, err
		}
		return unmarshalAndValidate(k)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadINI(path)
	}
}

// loadYAML loads config from a YAML file with Koanf.
func loadYAML(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(k)
}

// loadINI loads config from a legacy flat INI file.
func loadINI(path string) (*Config, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse INI config file: %w", err)
	}

	m, warnings := iniToMap(iniFile)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load INI values: %w", err)
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(k)
}

// LoadINIWithWarnings reads a legacy INI file without env overrides and
// returns warnings for keys that were skipped. Used by migrate-config.
func LoadINIWithWarnings(path string) (*Config, []string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file not found: %s", path)
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse INI config file: %w", err)
	}

	m, warnings := iniToMap(iniFile)

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, nil, err
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load INI values: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, warnings, nil
}

// iniKeyMap maps INI key names (lowercased) to koanf key paths. Section names
// are ignored so older files with a single [general] section keep working.
var iniKeyMap = map[string]string{
	"mode":              "fix.mode",
	"force":             "fix.force",
	"dryrun":            "fix.dry_run",
	"maxretries":        "fix.max_retries",
	"retries":           "fix.max_retries",
	"retrydelay":        "fix.retry_delay",
	"wait":              "fix.retry_delay",
	"verbose":           "log.verbose",
	"debug":             "log.debug",
	"logfile":           "log.file",
	"syslog":            "log.syslog",
	"vendor":            "hardware.vendor",
	"product":           "hardware.product",
	"dmidir":            "hardware.dmi_dir",
	"driverpath":        "hardware.driver_path",
	"drmdir":            "hardware.drm_dir",
	"lspcipath":         "hardware.lspci_path",
	"discretepattern":   "hardware.discrete_pattern",
	"integratedpattern": "hardware.integrated_pattern",
	"mindisplays":       "hardware.min_displays",
	"kscreendoctor":     "kscreen.doctor_path",
	"doctorpath":        "kscreen.doctor_path",
	"shell":             "kscreen.shell",
	"internalpatterns":  "kscreen.internal_patterns",
	"maxnamelength":     "kscreen.max_name_length",
	"notify":            "notify.enabled",
	"notifyappname":     "notify.app_name",
	"notifytimeout":     "notify.timeout_ms",
	"telemetry":         "telemetry.enabled",
	"otlpendpoint":      "telemetry.otlp_endpoint",
}

// listKeys are split on commas when read from INI.
var listKeys = map[string]bool{
	"kscreen.internal_patterns": true,
}

// legacyINIKeys are recognized keys with no equivalent here.
var legacyINIKeys = map[string]bool{
	"lockfile":    true, // declared by earlier releases, never used
	"librarypath": true, // LD_PRELOAD mode is not implemented
	"configdir":   true, // config monitoring mode is not implemented
}

// iniToMap maps INI keys to the nested koanf key namespace and returns
// warnings for keys it skipped.
func iniToMap(f *ini.File) (map[string]interface{}, []string) {
	m := make(map[string]interface{})
	var warnings []string

	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			normalised := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key.Name()))
			if koanfKey, ok := iniKeyMap[normalised]; ok {
				if listKeys[koanfKey] {
					m[koanfKey] = splitList(key.Value())
				} else {
					m[koanfKey] = key.Value()
				}
			} else if legacyINIKeys[normalised] {
				warnings = append(warnings, fmt.Sprintf("INI key [%s] %s is not supported (skipped)", section.Name(), key.Name()))
			} else {
				warnings = append(warnings, fmt.Sprintf("unrecognized INI key [%s] %s (skipped)", section.Name(), key.Name()))
			}
		}
	}

	return m, warnings
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- helpers ---

func loadDefaults(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfig().Values(), "."), nil)
}

// Values flattens c into koanf's dotted key space.
func (c *Config) Values() map[string]interface{} {
	return map[string]interface{}{
		"fix.mode":                    string(c.Fix.Mode),
		"fix.force":                   c.Fix.Force,
		"fix.dry_run":                 c.Fix.DryRun,
		"fix.max_retries":             c.Fix.MaxRetries,
		"fix.retry_delay":             c.Fix.RetryDelay,
		"log.verbose":                 c.Log.Verbose,
		"log.debug":                   c.Log.Debug,
		"log.file":                    c.Log.File,
		"log.syslog":                  c.Log.Syslog,
		"hardware.vendor":             c.Hardware.Vendor,
		"hardware.product":            c.Hardware.Product,
		"hardware.dmi_dir":            c.Hardware.DMIDir,
		"hardware.driver_path":        c.Hardware.DriverPath,
		"hardware.drm_dir":            c.Hardware.DRMDir,
		"hardware.lspci_path":         c.Hardware.LspciPath,
		"hardware.discrete_pattern":   c.Hardware.DiscretePattern,
		"hardware.integrated_pattern": c.Hardware.IntegratedPattern,
		"hardware.min_displays":       c.Hardware.MinDisplays,
		"kscreen.doctor_path":         c.KScreen.DoctorPath,
		"kscreen.shell":               c.KScreen.Shell,
		"kscreen.internal_patterns":   c.KScreen.InternalPatterns,
		"kscreen.max_name_length":     c.KScreen.MaxNameLength,
		"notify.enabled":              c.Notify.Enabled,
		"notify.app_name":             c.Notify.AppName,
		"notify.timeout_ms":           c.Notify.TimeoutMS,
		"telemetry.enabled":           c.Telemetry.Enabled,
		"telemetry.otlp_endpoint":     c.Telemetry.OTLPEndpoint,
	}
}

func loadEnvOverrides(k *koanf.Koanf) error {
	// DPM_FIX_MAX_RETRIES → fix.max_retries
	return k.Load(env.Provider("DPM_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "DPM_")
		s = strings.ToLower(s)
		if idx := strings.Index(s, "_"); idx >= 0 {
			return s[:idx] + "." + s[idx+1:]
		}
		return s
	}), nil)
}

func unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that values are in range and patterns compile.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseMode(string(c.Fix.Mode)); err != nil {
		errs = append(errs, fmt.Errorf("fix.mode: %w", err))
	}
	if c.Fix.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("fix.max_retries must be at least 1, got %d", c.Fix.MaxRetries))
	}
	if c.Fix.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("fix.retry_delay must be >= 0, got %d", c.Fix.RetryDelay))
	}

	if c.Hardware.MinDisplays < 1 {
		errs = append(errs, fmt.Errorf("hardware.min_displays must be at least 1, got %d", c.Hardware.MinDisplays))
	}
	if _, err := regexp.Compile(c.Hardware.DiscretePattern); err != nil {
		errs = append(errs, fmt.Errorf("hardware.discrete_pattern: %w", err))
	}
	if _, err := regexp.Compile(c.Hardware.IntegratedPattern); err != nil {
		errs = append(errs, fmt.Errorf("hardware.integrated_pattern: %w", err))
	}

	if c.KScreen.DoctorPath == "" {
		errs = append(errs, fmt.Errorf("kscreen.doctor_path is required"))
	}
	if c.KScreen.Shell == "" {
		errs = append(errs, fmt.Errorf("kscreen.shell is required"))
	}
	if len(c.KScreen.InternalPatterns) == 0 {
		errs = append(errs, fmt.Errorf("kscreen.internal_patterns must not be empty"))
	}
	if c.KScreen.MaxNameLength < 1 {
		errs = append(errs, fmt.Errorf("kscreen.max_name_length must be at least 1, got %d", c.KScreen.MaxNameLength))
	}

	if c.Notify.TimeoutMS < -1 {
		errs = append(errs, fmt.Errorf("notify.timeout_ms must be >= -1, got %d", c.Notify.TimeoutMS))
	}

	return errors.Join(errs...)
}
