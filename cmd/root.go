// Package main provides the unified CLI entry point for the SCMXpert services.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "scmxpert",
		Short: "Shipment and IoT device tracking",
		Long: `SCMXpert tracks shipments and IoT sensor devices per user:
- web: dashboard, tracking, analytics and IoT pages
- telemetry: applies device readings and shipment updates from RabbitMQ
- simulator: publishes synthetic telemetry for existing devices and shipments
- snapshot: writes the daily analytics rollup of every user`,
		Version: "1.0.0",
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or /etc/scmxpert/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	// Database flags are shared by every service
	flags.String("db-driver", "postgres", "database driver (postgres, sqlite)")
	flags.String("db-host", "localhost", "PostgreSQL host")
	flags.Int("db-port", 5432, "PostgreSQL port")
	flags.String("db-user", "postgres", "PostgreSQL user")
	flags.String("db-password", "", "PostgreSQL password")
	flags.String("db-name", "scmxpert", "PostgreSQL database name")
	flags.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	flags.String("db-path", "scmxpert.db", "SQLite database file")

	bindings := map[string]string{
		"log.level":   "log-level",
		"db.driver":   "db-driver",
		"db.host":     "db-host",
		"db.port":     "db-port",
		"db.user":     "db-user",
		"db.password": "db-password",
		"db.name":     "db-name",
		"db.sslmode":  "db-sslmode",
		"db.path":     "db-path",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatalf("failed to bind %s flag: %v", flag, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := InitConfig(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
