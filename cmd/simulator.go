package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/scmxpert/internal/simulator"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the telemetry simulator",
	Long: `Run the telemetry simulator that:
- Reads the active devices and in-transit shipments from the database
- Generates correlated temperature, humidity and battery readings
- Occasionally delivers or delays a shipment
- Publishes everything to RabbitMQ for the telemetry service`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("queue-name", "telemetry", "RabbitMQ queue name for telemetry messages")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between simulation rounds")
	simulatorCmd.Flags().Int("batch-size", simulator.DefaultBatchSize, "Devices and shipments simulated per round")
	simulatorCmd.Flags().Float64("transition-probability", simulator.DefaultTransitionProbability, "Chance per round that a shipment is delivered or delayed")
	simulatorCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")

	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.queue_name", simulatorCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulator.batch_size", simulatorCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("simulator.transition_probability", simulatorCmd.Flags().Lookup("transition-probability"))
	_ = viper.BindPFlag("simulator.seed", simulatorCmd.Flags().Lookup("seed"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger("simulator")
	logger.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:                logger,
		DB:                    GetDBConfig(logger),
		RabbitMQURL:           viper.GetString("simulator.rabbitmq.url"),
		QueueName:             viper.GetString("simulator.rabbitmq.queue_name"),
		Interval:              viper.GetDuration("simulator.interval"),
		BatchSize:             viper.GetInt("simulator.batch_size"),
		TransitionProbability: viper.GetFloat64("simulator.transition_probability"),
		Seed:                  viper.GetUint64("simulator.seed"),
	}

	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator server", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"queue", config.QueueName,
		"interval", config.Interval,
		"batch_size", config.BatchSize,
		"transition_probability", config.TransitionProbability,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator server error", "error", err)
		return err
	}

	logger.Info("simulator server stopped")
	return nil
}
