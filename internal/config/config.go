package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "aisjump.cfg.json"

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// InputConfig holds input reading settings
type InputConfig struct {
	Path             string   `json:"path" mapstructure:"path"`
	BatchSize        int      `json:"batchSize" mapstructure:"batchSize"`
	TimestampLayouts []string `json:"timestampLayouts" mapstructure:"timestampLayouts"`
}

// DetectionConfig holds thresholds and pool sizing
type DetectionConfig struct {
	DistanceThresholdKm  float64 `json:"distanceThresholdKm" mapstructure:"distanceThresholdKm"`
	VelocityThresholdKmh float64 `json:"velocityThresholdKmh" mapstructure:"velocityThresholdKmh"`
	WorkerCount          int     `json:"workerCount" mapstructure:"workerCount"`
	TimeDiffUnit         float64 `json:"timeDiffUnit" mapstructure:"timeDiffUnit"`
}

// Validate rejects negative thresholds, an empty pool and a non-positive time unit.
func (c DetectionConfig) Validate() error {
	switch {
	case c.DistanceThresholdKm < 0:
		return fmt.Errorf("%w: distanceThresholdKm must not be negative, got %v", ErrInvalid, c.DistanceThresholdKm)
	case c.VelocityThresholdKmh < 0:
		return fmt.Errorf("%w: velocityThresholdKmh must not be negative, got %v", ErrInvalid, c.VelocityThresholdKmh)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: workerCount must be at least 1, got %d", ErrInvalid, c.WorkerCount)
	case c.TimeDiffUnit <= 0:
		return fmt.Errorf("%w: timeDiffUnit must be positive, got %v", ErrInvalid, c.TimeDiffUnit)
	}
	return nil
}

// OutputConfig holds report and chart settings
type OutputConfig struct {
	Dir             string `json:"dir" mapstructure:"dir"`
	ReportName      string `json:"reportName" mapstructure:"reportName"`
	TimestampLayout string `json:"timestampLayout" mapstructure:"timestampLayout"`
	Charts          bool   `json:"charts" mapstructure:"charts"`
	HTML            bool   `json:"html" mapstructure:"html"`
	GeoJSON         bool   `json:"geojson" mapstructure:"geojson"`
	GeoJSONCRS      int    `json:"geojsonCRS" mapstructure:"geojsonCRS"`
	Summary         bool   `json:"summary" mapstructure:"summary"`
	CompressSummary bool   `json:"compressSummary" mapstructure:"compressSummary"`
}

// InfluxConfig holds the optional timing publisher settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// MetricsConfig holds the OpenTelemetry metrics export settings
type MetricsConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// GraylogConfig holds GELF log sink settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load sets default values and reads the JSON config file from configDir.
// A missing file is not an error; a malformed one is.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./aisjump-logs")

	viper.SetDefault("input.path", "")
	viper.SetDefault("input.batchSize", 100_000)
	viper.SetDefault("input.timestampLayouts", []string{
		"02/01/2006 15:04:05",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	})

	viper.SetDefault("detection.distanceThresholdKm", 100.0)
	viper.SetDefault("detection.velocityThresholdKmh", 1000.0)
	viper.SetDefault("detection.workerCount", 4)
	viper.SetDefault("detection.timeDiffUnit", 1.0)

	viper.SetDefault("output.dir", "./output")
	viper.SetDefault("output.reportName", "spoofing_report.csv")
	viper.SetDefault("output.timestampLayout", "2006-01-02 15:04:05")
	viper.SetDefault("output.charts", true)
	viper.SetDefault("output.html", true)
	viper.SetDefault("output.geojson", false)
	viper.SetDefault("output.geojsonCRS", 4326)
	viper.SetDefault("output.summary", true)
	viper.SetDefault("output.compressSummary", false)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "aisjump")
	viper.SetDefault("influx.bucket", "aisjump")
	viper.SetDefault("influx.backupPath", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.interval", "30s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetInputConfig returns the input section.
func GetInputConfig() InputConfig {
	return InputConfig{
		Path:             viper.GetString("input.path"),
		BatchSize:        viper.GetInt("input.batchSize"),
		TimestampLayouts: viper.GetStringSlice("input.timestampLayouts"),
	}
}

// GetDetectionConfig returns the detection section.
func GetDetectionConfig() DetectionConfig {
	return DetectionConfig{
		DistanceThresholdKm:  viper.GetFloat64("detection.distanceThresholdKm"),
		VelocityThresholdKmh: viper.GetFloat64("detection.velocityThresholdKmh"),
		WorkerCount:          viper.GetInt("detection.workerCount"),
		TimeDiffUnit:         viper.GetFloat64("detection.timeDiffUnit"),
	}
}

// GetOutputConfig returns the output section.
func GetOutputConfig() OutputConfig {
	return OutputConfig{
		Dir:             viper.GetString("output.dir"),
		ReportName:      viper.GetString("output.reportName"),
		TimestampLayout: viper.GetString("output.timestampLayout"),
		Charts:          viper.GetBool("output.charts"),
		HTML:            viper.GetBool("output.html"),
		GeoJSON:         viper.GetBool("output.geojson"),
		GeoJSONCRS:      viper.GetInt("output.geojsonCRS"),
		Summary:         viper.GetBool("output.summary"),
		CompressSummary: viper.GetBool("output.compressSummary"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetMetricsConfig returns the metrics section.
func GetMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:  viper.GetBool("metrics.enabled"),
		Interval: viper.GetDuration("metrics.interval"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
