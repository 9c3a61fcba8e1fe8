package run

import (
	"errors"
	"io/fs"
	"os"

	"github.com/Mmx233/FSearch/config"
	"github.com/Mmx233/FSearch/tools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")
	serverAddr = tools.GetenvDefault(config.EnvPrefix+"SERVER", "")
	Cmd        = &cobra.Command{
		Use:   "run",
		Short: "Run fsearch client, load test or fixture server",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of config file")
	Cmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", serverAddr, "server address, overrides the config file (listen address for run server)")
	Cmd.AddCommand(clientCmd)
	Cmd.AddCommand(searchCmd)
	Cmd.AddCommand(benchCmd)
	Cmd.AddCommand(serverCmd)
}

// configMissing reports whether the config file can be skipped because the
// server address came from the command line.
func configMissing() bool {
	if serverAddr == "" {
		return false
	}
	_, err := os.Stat(configFile)
	return errors.Is(err, fs.ErrNotExist)
}

func loadClientConfig() (*config.Client, error) {
	if configMissing() {
		log.Debug().Str("config", configFile).Msg("config file not found, using defaults")
		cfg := &config.Client{Server: serverAddr}
		cfg.ApplyDefaults()
		return cfg, cfg.Validate()
	}
	log.Info().Str("config", configFile).Msg("loading configuration")
	return config.LoadClientConfig(configFile, serverAddr)
}

func loadBenchConfig() (*config.Bench, error) {
	if configMissing() {
		log.Debug().Str("config", configFile).Msg("config file not found, using defaults")
		cfg := &config.Bench{Client: config.Client{Server: serverAddr}}
		cfg.ApplyDefaults()
		return cfg, cfg.Validate()
	}
	log.Info().Str("config", configFile).Msg("loading configuration")
	return config.LoadBenchConfig(configFile, serverAddr)
}
