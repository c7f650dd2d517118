package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/resourcekit/cmd/rkit/commands"
	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/services"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rkit",
	Short: "Cloud resource CLI",
	Long: `A command-line interface for cloud REST resources.

Every registered resource gets its own command group with the operations
its service supports: list, get, create, update and delete.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.rkit/config.yml)")
	flags.StringP("endpoint", "e", "", "service endpoint URL")
	flags.StringP("token", "t", "", "authentication token")
	flags.StringP("output", "o", "", "output format (table, json, yaml)")
	flags.StringP("microversion", "m", "", "API microversion to request")
	flags.String("region", "", "catalog region")
	flags.String("interface", "", "catalog interface (public, internal, admin)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.Bool("debug", false, "log every HTTP request and response")

	for _, name := range []string{
		"config", "endpoint", "token", "output", "microversion",
		"region", "interface", "verbose", "debug",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	registry := services.DefaultRegistry()
	sessions := commands.ViperSessionFactory(os.Stderr)

	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewResourcesCommand(registry))

	for _, schema := range registry.Schemas() {
		rootCmd.AddCommand(commands.NewResourceCommand(schema, sessions))
	}
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in ~/.rkit/config.yml
		configDir := filepath.Join(home, constants.ConfigDirName)
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName(constants.ConfigFileName)
	}

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
