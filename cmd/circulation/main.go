package main

import (
	"context"
	stdLog "log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/library-circulation/circulation/app"
	"github.com/Astemirdum/library-circulation/circulation/config"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "circulation",
		Short:        "Library circulation service: loans, returns and reservation queues",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil {
				if cmd.Flags().Changed("env") {
					return err
				}
				stdLog.Println("skip .env: ", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load")
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// configOptions seed values LOG_LEVEL and HTTP_WRITE leave unset.
func configOptions() []config.Option {
	return []config.Option{
		config.WithLogLevel(zapcore.InfoLevel),
		config.WithWriteTimeout(time.Minute),
	}
}

func loadConfig() (config.Config, error) {
	return config.NewConfig(configOptions()...)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the activity consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	for _, command := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print migration status"},
	} {
		command := command
		cmd.AddCommand(&cobra.Command{
			Use:   command.use,
			Short: command.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				return app.Migrate(ctx, cfg, command.use)
			},
		})
	}
	return cmd
}
