package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string
	verbose  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "symptra",
	Short: "Symptra - symptom text to ranked disease predictions (informational only)",
	Long: `Symptra reads a free-text description of symptoms, extracts the
symptoms it recognizes, ranks the three most likely diseases with a
random-forest classifier and adds a severity-based risk score, a short
description and recommended precautions.

It is not a medical device and does not give medical advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	defer log.Sync()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.symptra/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the reference CSV files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".symptra"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SYMPTRA_LLM_PROVIDER maps to llm.provider
	viper.SetEnvPrefix("SYMPTRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_key", "SYMPTRA_LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.base_url", "SYMPTRA_LLM_BASE_URL", "OLLAMA_BASE_URL")
	_ = viper.BindEnv("model.minio.access_key_id", "SYMPTRA_MODEL_MINIO_ACCESS_KEY_ID", "MINIO_ACCESS_KEY")
	_ = viper.BindEnv("model.minio.secret_access_key", "SYMPTRA_MODEL_MINIO_SECRET_ACCESS_KEY", "MINIO_SECRET_KEY")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file, environment and flags over the
// defaults and initializes logging.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	defaultArtifact := cfg.Model.ArtifactPath

	registerDefaults(cfg)
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// The artifact follows --data-dir unless it was placed explicitly
	if cfg.Model.ArtifactPath == defaultArtifact && cfg.Data.Dir != model.DefaultConfig().Data.Dir {
		cfg.Model.ArtifactPath = filepath.Join(cfg.Data.Dir, "model.json")
	}

	level := cfg.Log.Level
	if verbose && level == "info" {
		level = "debug"
	}
	if err := log.Init(level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// registerDefaults makes every config key known to viper so environment
// variables are picked up by Unmarshal even when no file sets them.
func registerDefaults(cfg *model.Config) {
	defaults := map[string]interface{}{
		"data.dir":                cfg.Data.Dir,
		"data.dataset_file":       cfg.Data.DatasetFile,
		"data.severity_file":      cfg.Data.SeverityFile,
		"data.description_file":   cfg.Data.DescriptionFile,
		"data.precaution_file":    cfg.Data.PrecautionFile,
		"model.store":             cfg.Model.Store,
		"model.artifact_path":     cfg.Model.ArtifactPath,
		"model.trees":             cfg.Model.Trees,
		"model.seed":              cfg.Model.Seed,
		"model.test_fraction":     cfg.Model.TestFraction,
		"model.minio.endpoint":    cfg.Model.MinIO.Endpoint,
		"model.minio.use_ssl":     cfg.Model.MinIO.UseSSL,
		"model.minio.bucket_name": cfg.Model.MinIO.BucketName,
		"model.minio.object_name": cfg.Model.MinIO.ObjectName,
		"risk.normalizer":         cfg.Risk.Normalizer,
		"risk.max":                cfg.Risk.Max,
		"extract.engine":          cfg.Extract.Engine,
		"llm.provider":            cfg.LLM.Provider,
		"llm.model":               cfg.LLM.Model,
		"llm.timeout":             cfg.LLM.Timeout,
		"llm.max_tokens":          cfg.LLM.MaxTokens,
		"llm.requests_per_second": cfg.LLM.RequestsPerSecond,
		"llm.burst_size":          cfg.LLM.BurstSize,
		"llm.http_proxy":          cfg.LLM.HTTPProxy,
		"llm.https_proxy":         cfg.LLM.HTTPSProxy,
		"llm.no_proxy":            cfg.LLM.NoProxy,
		"cache.enabled":           cfg.Cache.Enabled,
		"cache.dir":               cfg.Cache.Dir,
		"cache.memory_ttl":        cfg.Cache.MemoryTTL,
		"cache.disk_ttl":          cfg.Cache.DiskTTL,
		"server.addr":             cfg.Server.Addr,
		"server.mode":             cfg.Server.Mode,
		"concurrency.workers":     cfg.Concurrency.Workers,
		"log.level":               cfg.Log.Level,
		"log.format":              cfg.Log.Format,
		"log.output_path":         cfg.Log.OutputPath,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}
