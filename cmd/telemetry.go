package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/scmxpert/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Run the telemetry ingestion service",
	Long: `Run the telemetry ingestion service that:
- Consumes device readings and shipment updates from RabbitMQ
- Applies them to the devices and shipments they name
- Drops malformed or unknown messages and requeues storage failures`,
	RunE: runTelemetry,
}

func init() {
	rootCmd.AddCommand(telemetryCmd)

	telemetryCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	telemetryCmd.Flags().String("queue-name", "telemetry", "RabbitMQ queue name for telemetry messages")
	telemetryCmd.Flags().Int("metrics-port", 0, "port serving /metrics and /health (0 disables)")

	_ = viper.BindPFlag("telemetry.rabbitmq.url", telemetryCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("telemetry.rabbitmq.queue_name", telemetryCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("telemetry.metrics.port", telemetryCmd.Flags().Lookup("metrics-port"))
}

func runTelemetry(_ *cobra.Command, _ []string) error {
	logger := GetLogger("telemetry")
	logger.Info("starting telemetry service")

	config := &telemetry.ServerConfig{
		Logger:      logger,
		DB:          GetDBConfig(logger),
		RabbitMQURL: viper.GetString("telemetry.rabbitmq.url"),
		QueueName:   viper.GetString("telemetry.rabbitmq.queue_name"),
		MetricsPort: viper.GetInt("telemetry.metrics.port"),
	}

	server, err := telemetry.NewServer(config)
	if err != nil {
		logger.Error("failed to create telemetry server", "error", err)
		return err
	}

	logger.Info("telemetry server configuration",
		"db_driver", config.DB.Driver,
		"db_host", config.DB.Host,
		"db_name", config.DB.DBName,
		"queue", config.QueueName,
		"metrics_port", config.MetricsPort,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("telemetry server error", "error", err)
		return err
	}

	logger.Info("telemetry server stopped")
	return nil
}
