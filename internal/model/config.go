package model

import (
	"path/filepath"
	"time"
)

// Config is the complete runtime configuration
type Config struct {
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
	Model       ModelConfig       `yaml:"model" mapstructure:"model"`
	Risk        RiskConfig        `yaml:"risk" mapstructure:"risk"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the reference CSV files
type DataConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	DatasetFile     string `yaml:"dataset_file" mapstructure:"dataset_file"`
	SeverityFile    string `yaml:"severity_file" mapstructure:"severity_file"`
	DescriptionFile string `yaml:"description_file" mapstructure:"description_file"`
	PrecautionFile  string `yaml:"precaution_file" mapstructure:"precaution_file"`
}

// DatasetPath returns the labeled training examples path
func (d DataConfig) DatasetPath() string { return filepath.Join(d.Dir, d.DatasetFile) }

// SeverityPath returns the symptom severity table path
func (d DataConfig) SeverityPath() string { return filepath.Join(d.Dir, d.SeverityFile) }

// DescriptionPath returns the disease description table path
func (d DataConfig) DescriptionPath() string { return filepath.Join(d.Dir, d.DescriptionFile) }

// PrecautionPath returns the disease precaution table path
func (d DataConfig) PrecautionPath() string { return filepath.Join(d.Dir, d.PrecautionFile) }

// ModelConfig controls training and where the model bundle lives
type ModelConfig struct {
	Store        string      `yaml:"store" mapstructure:"store"` // file, minio
	ArtifactPath string      `yaml:"artifact_path" mapstructure:"artifact_path"`
	Trees        int         `yaml:"trees" mapstructure:"trees"`
	Seed         int64       `yaml:"seed" mapstructure:"seed"`
	TestFraction float64     `yaml:"test_fraction" mapstructure:"test_fraction"`
	MinIO        MinIOConfig `yaml:"minio" mapstructure:"minio"`
}

// MinIOConfig configures the object storage artifact backend
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"-" mapstructure:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	BucketName      string `yaml:"bucket_name" mapstructure:"bucket_name"`
	ObjectName      string `yaml:"object_name" mapstructure:"object_name"`
}

// RiskConfig holds the risk score normalization.
// Normalizer is the assumed maximum aggregate severity divisor (17 in the reference data).
type RiskConfig struct {
	Normalizer float64 `yaml:"normalizer" mapstructure:"normalizer"`
	Max        float64 `yaml:"max" mapstructure:"max"`
}

// ExtractConfig selects the symptom extraction engine
type ExtractConfig struct {
	Engine string `yaml:"engine" mapstructure:"engine"` // rules, llm, none
}

// LLMConfig configures the optional LLM entity recognizer
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures memoization of lookups and entity results
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ServerConfig configures the HTTP front end
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:             "data",
			DatasetFile:     "dataset.csv",
			SeverityFile:    "Symptom-severity.csv",
			DescriptionFile: "symptom_Description.csv",
			PrecautionFile:  "symptom_precaution.csv",
		},
		Model: ModelConfig{
			Store:        "file",
			ArtifactPath: filepath.Join("data", "model.json"),
			Trees:        150,
			Seed:         42,
			TestFraction: 0.2,
			MinIO: MinIOConfig{
				BucketName: "symptra",
				ObjectName: "model.json",
			},
		},
		Risk: RiskConfig{
			Normalizer: 17,
			Max:        10,
		},
		Extract: ExtractConfig{
			Engine: "rules",
		},
		LLM: LLMConfig{
			Provider:          "",
			Model:             "gpt-4o-mini",
			Timeout:           30,
			MaxTokens:         300,
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".symptra-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
