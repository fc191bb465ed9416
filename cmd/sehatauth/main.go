// Command sehatauth runs the SehatBridge identity service and its
// administrative tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sehatbridge/sehatauth/internal/config"
)

type rootFlags struct {
	configFile string
	envFiles   []string
}

func (f *rootFlags) load() (*config.Settings, error) {
	return config.Load(config.Options{EnvFiles: f.envFiles, YAMLFile: f.configFile})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:          "sehatauth",
		Short:        "SehatBridge identity and sequence service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "sehatauth.yaml", "YAML settings file (skipped when missing)")
	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(migrateCmd(flags))
	rootCmd.AddCommand(sequenceCmd(flags))
	return rootCmd
}
