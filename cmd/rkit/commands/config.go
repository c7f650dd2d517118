package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
)

// Config represents the persisted CLI configuration.
type Config struct {
	Endpoint     string            `json:"endpoint,omitempty"     yaml:"endpoint,omitempty"`
	Endpoints    map[string]string `json:"endpoints,omitempty"    yaml:"endpoints,omitempty"`
	Token        string            `json:"token,omitempty"        yaml:"token,omitempty"`
	Region       string            `json:"region,omitempty"       yaml:"region,omitempty"`
	Interface    string            `json:"interface,omitempty"    yaml:"interface,omitempty"`
	Microversion string            `json:"microversion,omitempty" yaml:"microversion,omitempty"`
	Output       string            `json:"output,omitempty"       yaml:"output,omitempty"`
}

var configSetters = map[string]func(*Config, string){
	"endpoint":     func(c *Config, v string) { c.Endpoint = v },
	"token":        func(c *Config, v string) { c.Token = v },
	"region":       func(c *Config, v string) { c.Region = v },
	"interface":    func(c *Config, v string) { c.Interface = v },
	"microversion": func(c *Config, v string) { c.Microversion = v },
	"output":       func(c *Config, v string) { c.Output = v },
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and change the settings stored in the rkit config file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.Token != "" {
				config.Token = "***"
			}

			format := outputFormat()
			if format != constants.FormatTable {
				return encode(cmd.OutOrStdout(), format, config)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Key", "Value")

			_ = table.Append("endpoint", formatConfigValue(config.Endpoint))
			_ = table.Append("token", formatConfigValue(config.Token))
			_ = table.Append("region", formatConfigValue(config.Region))
			_ = table.Append("interface", formatConfigValue(config.Interface))
			_ = table.Append("microversion", formatConfigValue(config.Microversion))
			_ = table.Append("output", formatConfigValue(config.Output))

			services := make([]string, 0, len(config.Endpoints))
			for service := range config.Endpoints {
				services = append(services, service)
			}

			sort.Strings(services)

			for _, service := range services {
				_ = table.Append("endpoints."+service, config.Endpoints[service])
			}

			err := table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Per-service endpoints use endpoints.<service>.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return err
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], "")
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return err
		},
	}
}

func setConfigValue(config *Config, key, value string) error {
	if service, ok := strings.CutPrefix(key, "endpoints."); ok && service != "" {
		if config.Endpoints == nil {
			config.Endpoints = make(map[string]string)
		}

		if value == "" {
			delete(config.Endpoints, service)
		} else {
			config.Endpoints[service] = value
		}

		return nil
	}

	setter, ok := configSetters[key]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	setter(config, value)

	return nil
}

func formatConfigValue(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}

// loadConfig reads the persisted settings through viper.
func loadConfig() *Config {
	return &Config{
		Endpoint:     viper.GetString("endpoint"),
		Endpoints:    viper.GetStringMapString("endpoints"),
		Token:        viper.GetString("token"),
		Region:       viper.GetString("region"),
		Interface:    viper.GetString("interface"),
		Microversion: viper.GetString("microversion"),
		Output:       viper.GetString("output"),
	}
}

// ConfigFilePath returns the config file in use, or the default location.
func ConfigFilePath() (string, error) {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName, constants.ConfigFileName+".yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := ConfigFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
