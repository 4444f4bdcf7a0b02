package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/config"
	"github.com/spigell/talent-matcher/internal/logger"
)

const (
	app = config.App
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talent-matcher scores candidates against jobs and keeps ranked matches up to date",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talent-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("records-file", "", "JSON file with candidates and jobs used when no database is configured")
	rootCmd.PersistentFlags().Bool("strict-years", false, "reject candidates whose experience years cannot be read")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("records-file", rootCmd.PersistentFlags().Lookup("records-file"))
	viper.BindPFlag("records.strict-years", rootCmd.PersistentFlags().Lookup("strict-years"))
}

// setup loads the configuration and builds the logger. Failures are fatal since no command can
// proceed without them.
func setup() (*config.Config, *zap.Logger) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		log.Fatalf("loading config: %s", err)
	}

	logger, err := logger.New(cfg.JSON, cfg.Debug)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	return cfg, logger
}
