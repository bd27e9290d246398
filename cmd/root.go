package cmd

import (
	"fmt"
	"os"

	"library-services/internal/config"
	"library-services/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Library User Ledger and Catalog services",
	Long: `Two cooperating library services built with Go:
- ledger: members, membership status and borrowed-book counts
- catalog: books, available copies, and borrow/return coordinated with the ledger

Example usage:
  library ledger --port 8081                 # Start the User Ledger
  library catalog --port 8080                # Start the Catalog
  library migrate up --service catalog       # Apply catalog SQL migrations
  library loadtest --concurrent 50           # Race borrows against both services`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := logger.InitWithConfig(level, cfg.Log.Format, cfg.Log.Output, cfg.Log.FilePath); err != nil {
			logger.Init(verbose)
			logger.Warn("Failed to initialize logger with config, using fallback: %v", err)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/library.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigType("yaml")
		viper.SetConfigName("library")
	}

	viper.SetEnvPrefix("LIBRARY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.Init()
}
