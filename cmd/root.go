package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	isTTY   = isatty.IsTerminal(os.Stdout.Fd())

	// Color helpers shared by the commands
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wxprobe",
	Short: "Weather API testing tool",
	Long: `wxprobe exercises a remote weather API with valid, invalid, and
edge-case city names, records the outcomes, and serves aggregate analytics.

Point it at any HTTP target: wxprobe first probes whether the target hosts
a weather API at all, then dispatches typed test cases against candidate
endpoint shapes and validates the JSON payloads that come back.`,
}

func Execute() {
	cobra.OnInitialize(initConfig)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetDefault("target_url", "http://localhost:5000")
	viper.SetDefault("listen_addr", ":5001")
	viper.SetDefault("database_path", "weather_tests.db")
	viper.SetDefault("suite.num_valid", 20)
	viper.SetDefault("suite.num_invalid", 10)
	viper.SetDefault("suite.num_edge", 8)
	viper.SetDefault("suite.delay", 0.1)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("wxprobe")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			log.Fatal().Err(err).Msg("cannot read config file")
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ./config.toml)")
}
