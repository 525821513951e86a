package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/pkg/logger"
)

// InitConfig initializes Viper configuration.
// It supports reading from config files (config.yaml) and environment variables.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/scmxpert/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SCMXPERT_DB_HOST overrides db.host
	viper.SetEnvPrefix("SCMXPERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// GetLogger creates a JSON logger for service at the configured level.
func GetLogger(service string) *slog.Logger {
	return logger.New(&logger.Config{
		Output:  os.Stdout,
		Service: service,
		Level:   logger.ParseLevel(viper.GetString("log.level")),
	})
}

// GetDBConfig builds the database configuration shared by all services.
func GetDBConfig(log *slog.Logger) *store.DBConfig {
	return &store.DBConfig{
		Logger:   log,
		Driver:   viper.GetString("db.driver"),
		Host:     viper.GetString("db.host"),
		Port:     viper.GetInt("db.port"),
		User:     viper.GetString("db.user"),
		Password: viper.GetString("db.password"),
		DBName:   viper.GetString("db.name"),
		SSLMode:  viper.GetString("db.sslmode"),
		Path:     viper.GetString("db.path"),
	}
}
