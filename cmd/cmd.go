package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "monument",
	Short:         "Monument care coordination",
	Long:          `API for people living with dementia, their caretakers and carecircles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFromEnvironment is set in containers, where no config file is mounted.
func configFromEnvironment() bool {
	return os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true"
}

func loadConfig(dir string) (*internal.Config, error) {
	cfg, err := readConfig(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readConfig(dir string) (*internal.Config, error) {
	if configFromEnvironment() {
		return internal.LoadConfigFromEnv(), nil
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config in %s: %w", dir, err)
	}
	cfg := &internal.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setup loads the config and installs the configured logger.
func setup() (*internal.Config, *slog.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	lg := logger.Configure(logger.Options{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	return cfg, lg.With("env", cfg.Env), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory holding config.yml")
	rootCmd.AddCommand(httpServerCmd, migrateCmd, seedCmd)
}
