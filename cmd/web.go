package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/scmxpert/internal/web"
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the web server",
	Long: `Run the web server that:
- Registers users and manages the session cookie
- Serves the dashboard, tracking, analytics and IoT pages
- Serves the theme toggle and shipment status JSON endpoints
- Exposes /health and /metrics`,
	RunE: runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)

	webCmd.Flags().Int("http-port", 8080, "HTTP server port")
	webCmd.Flags().String("session-secret", "", "secret used to sign session cookies")
	webCmd.Flags().Bool("cookie-secure", false, "mark cookies Secure (serve over HTTPS)")
	webCmd.Flags().Int("login-rate-limit", 0, "login attempts per IP per minute (0 disables)")
	webCmd.Flags().Int("bcrypt-cost", 0, "bcrypt cost for password hashes (0 uses the library default)")

	_ = viper.BindPFlag("web.http.port", webCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("web.session.secret", webCmd.Flags().Lookup("session-secret"))
	_ = viper.BindPFlag("web.session.cookie_secure", webCmd.Flags().Lookup("cookie-secure"))
	_ = viper.BindPFlag("web.login_rate_limit", webCmd.Flags().Lookup("login-rate-limit"))
	_ = viper.BindPFlag("web.bcrypt_cost", webCmd.Flags().Lookup("bcrypt-cost"))
}

func runWeb(_ *cobra.Command, _ []string) error {
	logger := GetLogger("web")
	logger.Info("starting web service")

	config := &web.ServerConfig{
		Logger:         logger,
		DB:             GetDBConfig(logger),
		HTTPPort:       viper.GetInt("web.http.port"),
		SessionSecret:  viper.GetString("web.session.secret"),
		CookieSecure:   viper.GetBool("web.session.cookie_secure"),
		LoginRateLimit: viper.GetInt("web.login_rate_limit"),
		BcryptCost:     viper.GetInt("web.bcrypt_cost"),
	}

	server, err := web.NewServer(config)
	if err != nil {
		logger.Error("failed to create web server", "error", err)
		return err
	}

	logger.Info("web server configuration",
		"http_port", config.HTTPPort,
		"db_driver", config.DB.Driver,
		"db_host", config.DB.Host,
		"db_name", config.DB.DBName,
		"login_rate_limit", config.LoginRateLimit,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("web server error", "error", err)
		return err
	}

	logger.Info("web server stopped")
	return nil
}
