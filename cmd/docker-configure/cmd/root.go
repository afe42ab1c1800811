package cmd

import (
	"github.com/spf13/cobra"

	"github.com/WarpBuilds/docker-configure/internal/config"
)

var (
	apiDomain string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "docker-configure",
	Short: "Provision WarpBuild remote builders for docker buildx",
	Long: `docker-configure acquires ephemeral remote build machines from the
WarpBuild provisioning API, waits for them to become ready, and registers
them as a remote docker buildx builder for the current CI job.

Run "docker-configure configure" at the start of the job and
"docker-configure cleanup" at the end to release the machines.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiDomain, "api-domain", "", "provisioning API base URL (overrides WARPBUILD_API_DOMAIN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides WARPBUILD_LOG_LEVEL)")
}

// loadConfig reads the environment configuration and layers persistent
// flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiDomain != "" {
		cfg.APIDomain = apiDomain
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
