package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Dealflow DealflowConfig `yaml:"dealflow"`
	Source   SourceConfig   `yaml:"source"`
	Export   ExportConfig   `yaml:"export"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DealflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type SourceConfig struct {
	ITAD ITADConfig `yaml:"itad"`
	IMF  IMFConfig  `yaml:"imf"`
}

type ITADConfig struct {
	BaseURL           string   `yaml:"base_url"`
	APIKey            string   `yaml:"api_key"`
	GameID            string   `yaml:"game_id"`
	Countries         []string `yaml:"countries"`
	ShopIDs           []int    `yaml:"shop_ids"`
	Since             string   `yaml:"since"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	RequestsPerSecond int      `yaml:"requests_per_second"`
	BurstSize         int      `yaml:"burst_size"`
}

type IMFConfig struct {
	BaseURL           string          `yaml:"base_url"`
	Database          string          `yaml:"database"`
	Countries         []string        `yaml:"countries"`
	StartYear         int             `yaml:"start_year"`
	EndYear           int             `yaml:"end_year"`
	Indicators        []IndicatorSpec `yaml:"indicators"`
	TimeoutSeconds    int             `yaml:"timeout_seconds"`
	RequestsPerSecond int             `yaml:"requests_per_second"`
	BurstSize         int             `yaml:"burst_size"`
}

type IndicatorSpec struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

type ExportConfig struct {
	Directory string        `yaml:"directory"`
	Formats   []string      `yaml:"formats"`
	Parquet   ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	KeyTemplate     string `yaml:"key_template"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

type LoggingConfig struct {
	Level      string                 `yaml:"level"`
	Format     string                 `yaml:"format"`
	Output     string                 `yaml:"output"`
	MaxAge     int                    `yaml:"max_age"`
	Fields     map[string]interface{} `yaml:"fields"`
	CloudWatch CloudWatchConfig       `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Region    string `yaml:"region"`
}

func defaultConfig() Config {
	return Config{
		Dealflow: DealflowConfig{
			Name:    "dealflow",
			Version: "1.0.0",
		},
		Source: SourceConfig{
			ITAD: ITADConfig{
				BaseURL:           "https://api.isthereanydeal.com",
				GameID:            "018d937f-21e1-728e-86d7-9acb3c59f2bb",
				Countries:         []string{"US", "BR", "AR", "TR", "JP", "DE"},
				ShopIDs:           []int{61},
				Since:             "2005-01-01T00:00:00Z",
				TimeoutSeconds:    30,
				RequestsPerSecond: 2,
				BurstSize:         1,
			},
			IMF: IMFConfig{
				BaseURL:   "https://dataservices.imf.org/REST/SDMX_JSON.svc",
				Database:  "WEO",
				Countries: []string{"USA", "BRA", "GBR", "JPN", "DEU", "FRA", "CAN"},
				StartYear: 2018,
				EndYear:   2024,
				Indicators: []IndicatorSpec{
					{Code: "PCPIPCH", Description: "Inflation, average consumer prices (Percent change)"},
					{Code: "NGDPDPC", Description: "Gross domestic product per capita, current prices (U.S. dollars)"},
					{Code: "PPPPC", Description: "Gross domestic product per capita, purchasing power parity (International dollars)"},
					{Code: "NGDP_RPCH", Description: "Gross domestic product, constant prices (Percent change)"},
					{Code: "LUR", Description: "Unemployment rate (Percent of total labor force)"},
				},
				TimeoutSeconds:    30,
				RequestsPerSecond: 2,
				BurstSize:         1,
			},
		},
		Export: ExportConfig{
			Directory: "data",
			Formats:   []string{"json", "csv", "bundle"},
			Parquet: ParquetConfig{
				Enabled:     true,
				Compression: "snappy",
			},
		},
		Storage: StorageConfig{
			S3: S3Config{
				KeyTemplate: "dealflow/{year}/{month}/{day}",
			},
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			ShutdownTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			MaxAge: 7,
		},
	}
}

var exportFormats = map[string]bool{
	"json":   true,
	"csv":    true,
	"bundle": true,
}

// HasFormat reports whether the named export format is enabled.
func (e ExportConfig) HasFormat(name string) bool {
	for _, f := range e.Formats {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// IndicatorCodes returns the configured indicator codes in order.
func (c IMFConfig) IndicatorCodes() []string {
	codes := make([]string, 0, len(c.Indicators))
	for _, spec := range c.Indicators {
		codes = append(codes, spec.Code)
	}
	return codes
}

// Descriptions maps indicator codes to their configured descriptions.
func (c IMFConfig) Descriptions() map[string]string {
	out := make(map[string]string, len(c.Indicators))
	for _, spec := range c.Indicators {
		out[spec.Code] = spec.Description
	}
	return out
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override source credentials from environment variables if available
	if v := os.Getenv("ITAD_API_KEY"); v != "" {
		config.Source.ITAD.APIKey = strings.TrimSpace(v)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Dealflow.Name == "" {
		return fmt.Errorf("dealflow.name is required")
	}

	if cfg.Dealflow.Version == "" {
		return fmt.Errorf("dealflow.version is required")
	}

	if cfg.Source.ITAD.BaseURL == "" {
		return fmt.Errorf("source.itad.base_url is required")
	}
	if cfg.Source.ITAD.GameID == "" {
		return fmt.Errorf("source.itad.game_id is required")
	}
	if len(cfg.Source.ITAD.Countries) == 0 {
		return fmt.Errorf("source.itad.countries must not be empty")
	}
	if cfg.Source.ITAD.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.itad.timeout_seconds must be greater than 0")
	}
	if cfg.Source.ITAD.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.itad.requests_per_second must be greater than 0")
	}

	if cfg.Source.IMF.BaseURL == "" {
		return fmt.Errorf("source.imf.base_url is required")
	}
	if cfg.Source.IMF.Database == "" {
		return fmt.Errorf("source.imf.database is required")
	}
	if len(cfg.Source.IMF.Countries) == 0 {
		return fmt.Errorf("source.imf.countries must not be empty")
	}
	if len(cfg.Source.IMF.Indicators) == 0 {
		return fmt.Errorf("source.imf.indicators must not be empty")
	}
	for _, spec := range cfg.Source.IMF.Indicators {
		if strings.TrimSpace(spec.Code) == "" {
			return fmt.Errorf("source.imf.indicators entries require a code")
		}
	}
	if cfg.Source.IMF.StartYear > cfg.Source.IMF.EndYear {
		return fmt.Errorf("source.imf.start_year must not be after source.imf.end_year")
	}
	if cfg.Source.IMF.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.imf.timeout_seconds must be greater than 0")
	}
	if cfg.Source.IMF.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.imf.requests_per_second must be greater than 0")
	}

	if cfg.Export.Directory == "" {
		return fmt.Errorf("export.directory is required")
	}
	for _, f := range cfg.Export.Formats {
		if !exportFormats[strings.ToLower(f)] {
			return fmt.Errorf("export.formats entry '%s' is not supported", f)
		}
	}
	if cfg.Export.Parquet.Enabled {
		switch strings.ToLower(cfg.Export.Parquet.Compression) {
		case "snappy", "gzip", "none", "uncompressed":
		default:
			return fmt.Errorf("export.parquet.compression '%s' is not supported", cfg.Export.Parquet.Compression)
		}
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
