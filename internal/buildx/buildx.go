// Package buildx registers ready builders as a named remote buildx
// builder. Builder instances are buildx CLI state with no daemon API, so
// registration shells out to docker buildx; the daemon itself is checked
// over the Docker API first.
package buildx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/docker/docker/client"

	"github.com/WarpBuilds/docker-configure/internal/builders"
)

// Registrar writes per-builder TLS material to disk and wires builders
// into docker buildx.
type Registrar struct {
	logger   *slog.Logger
	certRoot string

	runDocker func(ctx context.Context, args ...string) ([]byte, error)
}

// NewRegistrar creates a Registrar that stores certificates under certRoot.
func NewRegistrar(logger *slog.Logger, certRoot string) *Registrar {
	return &Registrar{
		logger:   logger,
		certRoot: certRoot,
		runDocker: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "docker", args...).CombinedOutput()
		},
	}
}

// DefaultCertRoot returns the certificate directory, under the runner's
// temp directory when running in CI.
func DefaultCertRoot() string {
	base := os.Getenv("RUNNER_TEMP")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "docker-configure", "certs")
}

// CheckDaemon verifies the local Docker daemon is reachable before any
// builder is registered.
func CheckDaemon(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon is not available: %w", err)
	}
	return nil
}

// Register writes the builder's TLS material and adds it to the named
// buildx builder. Index 0 creates the builder; later indexes append to it,
// which is why callers must register index 0 first. When use is set the
// builder becomes the default for subsequent buildx commands.
func (r *Registrar) Register(ctx context.Context, groupName string, b *builders.ReadyBuilder, index int, use bool) error {
	certs, err := r.writeCerts(groupName, b)
	if err != nil {
		return err
	}

	args := []string{"buildx", "create", "--name", groupName, "--driver", "remote"}
	if index > 0 {
		args = append(args, "--append")
	} else if use {
		args = append(args, "--use")
	}
	args = append(args, "--driver-opt", fmt.Sprintf("cacert=%s,cert=%s,key=%s", certs.CA, certs.Cert, certs.Key))
	if len(b.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(b.Platforms, ","))
	}
	args = append(args, Endpoint(b.Host))

	out, err := r.runDocker(ctx, args...)
	if err != nil {
		return fmt.Errorf("docker %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	r.logger.Info("registered builder with buildx", "group", groupName, "builder", b.ID, "index", index, "endpoint", Endpoint(b.Host))
	return nil
}

// Remove deletes the named buildx builder and its certificate directory.
func (r *Registrar) Remove(ctx context.Context, groupName string) error {
	out, err := r.runDocker(ctx, "buildx", "rm", "--force", groupName)
	if err != nil {
		return fmt.Errorf("docker buildx rm %s: %w: %s", groupName, err, strings.TrimSpace(string(out)))
	}
	if err := os.RemoveAll(filepath.Join(r.certRoot, groupName)); err != nil {
		return fmt.Errorf("remove cert directory: %w", err)
	}
	return nil
}

// Endpoint normalizes a builder host into a buildx remote endpoint URL.
func Endpoint(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "tcp://" + host
}

// certPaths are the on-disk locations of one builder's TLS material.
type certPaths struct {
	CA, Cert, Key string
}

// writeCerts persists the builder's TLS material to a directory scoped by
// group and builder id. Any write failure aborts registration: a partial
// credential set must never back an endpoint.
func (r *Registrar) writeCerts(groupName string, b *builders.ReadyBuilder) (certPaths, error) {
	dir := filepath.Join(r.certRoot, groupName, b.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return certPaths{}, fmt.Errorf("create cert directory: %w", err)
	}

	paths := certPaths{
		CA:   filepath.Join(dir, "ca.pem"),
		Cert: filepath.Join(dir, "cert.pem"),
		Key:  filepath.Join(dir, "key.pem"),
	}
	for path, content := range map[string]string{
		paths.CA:   b.CACert,
		paths.Cert: b.ClientCert,
		paths.Key:  b.ClientKey,
	} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return certPaths{}, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return paths, nil
}
