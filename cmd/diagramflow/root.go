package main

import (
	"fmt"
	"os"

	"github.com/aretw0/diagramflow/internal/cli"
	"github.com/aretw0/diagramflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diagramflow",
	Short: "diagramflow renders, validates and exports Mermaid diagrams",
	Long: `diagramflow is a diagram authoring studio. It validates Mermaid source, renders it
with a debounce, persists documents and exports them as PNG or SVG.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().String("store", "", "Override the store driver (memory, file, bolt, redis)")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagString(cmd, "config"))
	if err != nil {
		return cfg, err
	}
	if level := flagString(cmd, "log-level"); level != "" {
		cfg.Log.Level = level
	}
	if driver := flagString(cmd, "store"); driver != "" {
		cfg.Store.Driver = driver
	}
	return cfg, cfg.Validate()
}

// flagString looks name up on cmd and its parents' persistent flags.
func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// loadApp builds the studio for commands that need one.
func loadApp(cmd *cobra.Command, deps cli.Deps) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cfg, deps)
}
