package config

import (
	"fmt"
	"os"

	"github.com/Mmx233/FSearch/examples"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string // --config flag value

	Cmd = &cobra.Command{
		Use:   "config",
		Short: "Generate configuration files",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "output config file path")
	Cmd.AddCommand(templateCmd("client", "Generate client configuration file", examples.ClientConfig))
	Cmd.AddCommand(templateCmd("bench", "Generate load test configuration file", examples.BenchConfig))
	Cmd.AddCommand(templateCmd("server", "Generate fixture server configuration file", examples.ServerConfig))
}

// GetConfigFile returns the value of the --config flag
func GetConfigFile() string {
	return configFile
}

func templateCmd(name, short string, load func() ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTemplate(GetConfigFile(), name, load)
		},
	}
}

// writeTemplate copies an embedded template to path, refusing to overwrite.
func writeTemplate(path, name string, load func() ([]byte, error)) error {
	logger := log.With().Str("com", "generate").Logger()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	}

	content, err := load()
	if err != nil {
		return fmt.Errorf("load %s config template: %w", name, err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	logger.Info().Str("file", path).Msgf("generated %s configuration", name)
	return nil
}
