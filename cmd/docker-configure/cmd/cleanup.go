package cmd

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/WarpBuilds/docker-configure/internal/builders"
	"github.com/WarpBuilds/docker-configure/internal/buildx"
	"github.com/WarpBuilds/docker-configure/internal/logging"
	"github.com/WarpBuilds/docker-configure/internal/state"
	"github.com/WarpBuilds/docker-configure/pkg/client"
)

// cleanupTimeout bounds the whole cleanup pass. Cleanup runs after the
// build has already succeeded or failed; it should never hang a job.
const cleanupTimeout = 2 * time.Minute

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Release acquired builders and remove the buildx builder",
	Long: `Read the state record written by configure, release every acquired
builder via the provisioning API, and remove the registered buildx builder.

Cleanup is best-effort: failures are logged but never change the exit
status, and a missing state record means there is nothing to do.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().String("state-file", "", "path to the state record (defaults to the configure location)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		// Even a broken environment must not fail the post step.
		logging.New("info").Warn("cleanup: could not load configuration", "error", err)
		return nil
	}
	logger := logging.New(cfg.LogLevel)

	path, _ := cmd.Flags().GetString("state-file")
	if path == "" {
		path = state.DefaultPath()
	}

	rec, err := state.Load(path)
	if err != nil {
		logger.Warn("cleanup: could not read state record", "path", path, "error", err)
		return nil
	}
	if rec == nil {
		logger.Info("cleanup: no state record, nothing to clean up", "path", path)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if cred, err := cfg.Credential(); err != nil {
		logger.Warn("cleanup: no credential, skipping builder release", "error", err)
	} else {
		ids := lo.Map(rec.Machines, func(m state.Machine, _ int) string { return m.ID })
		releaser := builders.NewReleaser(client.New(cfg.APIDomain, cred), logger)
		if failed := releaser.ReleaseAll(ctx, ids); failed > 0 {
			logger.Warn("cleanup: some builders could not be released", "failed", failed, "total", len(ids))
		}
	}

	certRoot := rec.CertDir
	if certRoot == "" {
		certRoot = buildx.DefaultCertRoot()
	}
	reg := buildx.NewRegistrar(logger, certRoot)
	if err := reg.Remove(ctx, rec.GroupName); err != nil {
		logger.Warn("cleanup: could not remove buildx builder", "group", rec.GroupName, "error", err)
	}

	if err := state.Remove(path); err != nil {
		logger.Warn("cleanup: could not remove state record", "path", path, "error", err)
	}

	logger.Info("cleanup finished", "group", rec.GroupName, "builders", len(rec.Machines))
	return nil
}
