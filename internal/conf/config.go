// config.go: settings struct for the Sentinel retail analytics service and
// functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// Overflow policies for the ingest queue.
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop-oldest"
)

// WindowPolicyTumbling is the only supported windowing policy. It is a
// configuration value rather than a constant in code so the choice is
// visible and validated at startup.
const WindowPolicyTumbling = "tumbling"

// MainSettings contains node identification and logging configuration.
type MainSettings struct {
	Name string    // name of the Sentinel node, used to identify the event source
	Log  LogConfig // log file configuration
}

// LogConfig defines the configuration for a rotating log file.
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSizeMB  int    // max size in megabytes before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // max age in days of rotated files
}

// IngestSettings contains settings for the record adapter.
type IngestSettings struct {
	Host           string        // streaming server host
	Port           int           // streaming server port
	QueueSize      int           // bounded record queue depth
	OverflowPolicy string        // "block" or "drop-oldest"
	ReconnectMin   time.Duration // initial reconnect backoff
	ReconnectMax   time.Duration // backoff cap
	Input          InputConfig   // batch input settings
}

// InputConfig holds settings for batch file replay.
type InputConfig struct {
	Dir string `yaml:"-"` // directory holding the per-dataset JSONL files
}

// CatalogSettings points at the reference data files, loaded once at startup.
type CatalogSettings struct {
	ProductsPath  string // path to products_list.csv
	CustomersPath string // path to customer_data.csv
}

// WindowSettings controls the correlation window lifecycle.
type WindowSettings struct {
	Policy   string        // windowing policy, "tumbling"
	Duration time.Duration // window span W
	Grace    time.Duration // lateness bound L after window close
}

// CorrelatorSettings contains settings for the window manager.
type CorrelatorSettings struct {
	Window WindowSettings // window policy, span and grace
}

// DetectorSettings holds every detection threshold as a named field.
type DetectorSettings struct {
	MinDwell                time.Duration // minimum tag dwell for scanner avoidance
	PriceRatio              float64       // scanned/catalog ratio at or below which barcode switching triggers
	WeightToleranceGrams    float64       // absolute weight deviation above which weight discrepancy triggers
	QueueThreshold          int           // customer count at or above which long queue triggers
	DwellThresholdSeconds   float64       // average dwell at or above which long wait triggers
	InventoryVariancePct    float64       // percentage variance above which inventory discrepancy triggers
	StaffingRatio           float64       // busy-station ratio at or above which staffing need triggers
	MinInventoryForVariance int           // minimum expected stock for percentage variance to be meaningful
}

// FileOutputSettings controls the JSON Lines event file sink.
type FileOutputSettings struct {
	Enabled bool   // true to write events.jsonl
	Path    string // path to the output file
}

// SQLiteSettings controls the SQLite event sink.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite output
	Path    string // path to sqlite database
}

// MQTTSettings contains settings for the MQTT live feed sink.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Broker   string // broker URI (tcp://host:port)
	Topic    string // topic events are published to
	Username string // broker username
	Password string // broker password
}

// OutputSettings groups the event sinks.
type OutputSettings struct {
	File   FileOutputSettings // JSON Lines sink
	SQLite SQLiteSettings     // database sink
	MQTT   MQTTSettings       // live feed sink
}

// WebServerSettings contains settings for the dashboard API server.
type WebServerSettings struct {
	Enabled bool   // true to serve the dashboard API
	Port    string // port to listen on
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to expose /metrics
	Listen  string // address and port to listen on
}

// Settings contains all configuration options for the Sentinel service.
type Settings struct {
	Debug bool // true to enable debug output

	// Runtime values, not stored in the config file
	Version   string `yaml:"-"` // version from build
	BuildDate string `yaml:"-"` // build date from build

	Main       MainSettings       // node identity and logging
	Ingest     IngestSettings     // record adapter settings
	Catalog    CatalogSettings    // reference data locations
	Correlator CorrelatorSettings // window manager settings
	Detector   DetectorSettings   // rule thresholds
	Output     OutputSettings     // event sinks
	WebServer  WebServerSettings  // dashboard API
	Telemetry  TelemetrySettings  // Prometheus endpoint
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings instance and validates it.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults for every configuration parameter, defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and reads it back in.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// SaveSettings marshals the settings to YAML and writes them to the
// given path, so runtime changes survive a restart.
func SaveSettings(settings *Settings, configPath string) error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the config search paths: the user config
// directory followed by the working directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user config directory: %w", err)
	}

	return []string{
		filepath.Join(configDir, "sentinel"),
		".",
	}, nil
}
