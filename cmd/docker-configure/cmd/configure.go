package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/WarpBuilds/docker-configure/internal/builders"
	"github.com/WarpBuilds/docker-configure/internal/buildx"
	"github.com/WarpBuilds/docker-configure/internal/config"
	"github.com/WarpBuilds/docker-configure/internal/deadline"
	"github.com/WarpBuilds/docker-configure/internal/gha"
	"github.com/WarpBuilds/docker-configure/internal/logging"
	"github.com/WarpBuilds/docker-configure/internal/state"
	"github.com/WarpBuilds/docker-configure/pkg/client"
	"github.com/WarpBuilds/docker-configure/pkg/types"
)

// outputWindow is the minimum number of builder indexes exported: CI
// pipelines reference node 0 and node 1 outputs unconditionally, so unused
// indexes export empty values.
const outputWindow = 2

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Acquire remote builders and register them with docker buildx",
	Long: `Acquire one or more remote builders for a profile, wait for them to
become ready, write their TLS material to disk, and register them as a
named buildx builder. Connection details are exported as step outputs.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().String("profile", "", "builder profile name, or comma-separated fallback list (overrides WARPBUILD_PROFILE_NAME)")
	configureCmd.Flags().Int("timeout", 0, "acquisition timeout in milliseconds (overrides WARPBUILD_TIMEOUT_MS)")
	configureCmd.Flags().Bool("no-buildx", false, "export outputs without registering a buildx builder")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
		cfg.ProfileName = profile
	}
	if timeout, _ := cmd.Flags().GetInt("timeout"); timeout > 0 {
		cfg.TimeoutMS = timeout
	}
	if noBuildx, _ := cmd.Flags().GetBool("no-buildx"); noBuildx {
		cfg.SetupBuildx = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel)
	cred, err := cfg.Credential()
	if err != nil {
		return err
	}
	if exp, ok := config.TokenExpiry(cred); ok && time.Now().After(exp) {
		logger.Warn("verification token is already expired, the API will likely reject it", "expired_at", exp)
	}

	ctx := context.Background()
	c := client.New(cfg.APIDomain, cred)
	dl := deadline.New(cfg.Timeout())

	logger.Info("acquiring builders",
		"profiles", strings.Join(cfg.Profiles(), ", "), "timeout", cfg.Timeout())

	insts, err := builders.NewAcquirer(c, logger).Acquire(ctx, cfg.Profiles(), dl)
	if err != nil {
		return err
	}

	groupName := "warpbuild-" + uuid.NewString()[:8]

	// Persist the handoff record before polling so the cleanup step can
	// release the machines even if this process dies mid-wait.
	statePath := state.DefaultPath()
	rec := &state.Record{
		GroupName: groupName,
		CertDir:   buildx.DefaultCertRoot(),
		Machines: lo.Map(insts, func(in types.BuilderInstance, i int) state.Machine {
			return state.Machine{ID: in.ID, Index: i}
		}),
	}
	if err := state.Save(statePath, rec); err != nil {
		releaseAcquired(ctx, c, logger, insts)
		return err
	}
	if err := gha.SaveState("state-path", statePath); err != nil {
		logger.Warn("could not save state path for the post step", "error", err)
	}

	ready, err := builders.NewPoller(c, logger).WaitAll(ctx, insts, dl)
	if err != nil {
		releaseAcquired(ctx, c, logger, insts)
		return err
	}

	if cfg.SetupBuildx {
		if err := registerAll(ctx, logger, groupName, ready); err != nil {
			releaseAcquired(ctx, c, logger, insts)
			return err
		}
	}

	if err := exportOutputs(ready); err != nil {
		return err
	}

	fmt.Printf("✓ Builder group ready: %s\n", groupName)
	for i, b := range ready {
		fmt.Printf("  Node %d: %s (%s) platforms=%s\n", i, b.ID, buildx.Endpoint(b.Host), strings.Join(b.Platforms, ","))
	}
	return nil
}

// registerAll wires the ready builders into buildx. Index 0 must be
// created before any other node can append to the group, so registration
// is strictly in index order.
func registerAll(ctx context.Context, logger *slog.Logger, groupName string, ready []*builders.ReadyBuilder) error {
	if err := buildx.CheckDaemon(ctx); err != nil {
		return err
	}
	reg := buildx.NewRegistrar(logger, buildx.DefaultCertRoot())
	for i, b := range ready {
		if err := reg.Register(ctx, groupName, b, i, true); err != nil {
			return err
		}
	}
	return nil
}

// exportOutputs exposes per-index connection details as step outputs.
// Indexes beyond the acquired count export empty values so downstream
// steps can reference them unconditionally.
func exportOutputs(ready []*builders.ReadyBuilder) error {
	window := max(outputWindow, len(ready))
	for i := 0; i < window; i++ {
		var endpoint, platforms, cacert, cert, key string
		if i < len(ready) {
			b := ready[i]
			endpoint = buildx.Endpoint(b.Host)
			platforms = strings.Join(b.Platforms, ",")
			cacert, cert, key = b.CACert, b.ClientCert, b.ClientKey
		}
		prefix := fmt.Sprintf("docker-builder-node-%d", i)
		outputs := []struct {
			name, value string
		}{
			{prefix + "-endpoint", endpoint},
			{prefix + "-platforms", platforms},
			{prefix + "-cacert", cacert},
			{prefix + "-cert", cert},
			{prefix + "-key", key},
		}
		for _, out := range outputs {
			if err := gha.SetOutput(out.name, out.value); err != nil {
				return fmt.Errorf("export output %s: %w", out.name, err)
			}
		}
	}
	return nil
}

// releaseAcquired best-effort tears down every acquired builder after a
// failure. The primary error still decides the exit status.
func releaseAcquired(ctx context.Context, c *client.Client, logger *slog.Logger, insts []types.BuilderInstance) {
	ids := lo.Map(insts, func(in types.BuilderInstance, _ int) string { return in.ID })
	if failed := builders.NewReleaser(c, logger).ReleaseAll(ctx, ids); failed > 0 {
		logger.Warn("some builders could not be released", "failed", failed, "total", len(ids))
	}
}
