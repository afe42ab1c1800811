// Package config holds process configuration for docker-configure.
// Everything is sourced from the environment (the tool runs inside CI
// jobs), with cobra flags layered on top by the commands.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/caarlos0/env/v11"
	"github.com/samber/lo"
)

// placeholderToken is what runners export when no real verification token
// was issued; it means "fall back to the API key".
const placeholderToken = "true"

// Config is the full process configuration.
type Config struct {
	// APIDomain is the provisioning API base URL.
	APIDomain string `env:"WARPBUILD_API_DOMAIN" envDefault:"https://api.warpbuild.com"`

	// ProfileName is one profile, or a comma-separated fallback list
	// tried in order.
	ProfileName string `env:"WARPBUILD_PROFILE_NAME"`

	// TimeoutMS bounds the combined acquisition and readiness phase.
	TimeoutMS int `env:"WARPBUILD_TIMEOUT_MS" envDefault:"300000"`

	// SetupBuildx controls whether ready builders are registered with
	// docker buildx or only exported as outputs.
	SetupBuildx bool `env:"WARPBUILD_SETUP_BUILDX" envDefault:"true"`

	// VerificationToken is issued by WarpBuild runners. When present and
	// not the placeholder, it is the active credential.
	VerificationToken string `env:"WARPBUILD_RUNNER_VERIFICATION_TOKEN"`

	// APIKey authenticates jobs on non-WarpBuild runners.
	APIKey string `env:"WARPBUILD_API_KEY"`

	// APIKeySecretARN optionally points at an AWS Secrets Manager secret
	// holding the API key, for self-hosted runners with IAM credentials.
	APIKeySecretARN string `env:"WARPBUILD_API_KEY_SECRET_ARN"`

	LogLevel string `env:"WARPBUILD_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment. If an API key secret ARN
// is configured and no explicit API key is set, the key is fetched from
// Secrets Manager (explicit env vars always win).
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.APIKeySecretARN != "" && cfg.APIKey == "" {
		key, err := fetchAPIKeySecret(cfg.APIKeySecretARN)
		if err != nil {
			return nil, fmt.Errorf("fetch API key from %s: %w", cfg.APIKeySecretARN, err)
		}
		cfg.APIKey = key
	}

	return &cfg, nil
}

// Credential returns the active credential per the selection rule: a real
// verification token wins, otherwise the API key is required.
func (c *Config) Credential() (string, error) {
	if c.VerificationToken != "" && c.VerificationToken != placeholderToken {
		return c.VerificationToken, nil
	}
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	return "", fmt.Errorf("no credential: set WARPBUILD_RUNNER_VERIFICATION_TOKEN or WARPBUILD_API_KEY")
}

// Profiles returns the ordered profile list, split and trimmed.
func (c *Config) Profiles() []string {
	return lo.FilterMap(strings.Split(c.ProfileName, ","), func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}

// Timeout returns the acquisition budget as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is usable before any network call.
func (c *Config) Validate() error {
	if len(c.Profiles()) == 0 {
		return fmt.Errorf("no profile name: set WARPBUILD_PROFILE_NAME or --profile")
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout must be positive, got %d ms", c.TimeoutMS)
	}
	if _, err := c.Credential(); err != nil {
		return err
	}
	return nil
}

// fetchAPIKeySecret fetches the API key from AWS Secrets Manager using the
// default credential chain (IAM instance profile on EC2, or local AWS
// config). The secret value is either the key itself or a JSON object with
// a WARPBUILD_API_KEY field.
func fetchAPIKeySecret(arn string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Extract region from ARN: arn:aws:secretsmanager:REGION:ACCOUNT:secret:NAME
	var opts []func(*awsconfig.LoadOptions) error
	if parts := strings.Split(arn, ":"); len(parts) >= 4 && parts[3] != "" {
		opts = append(opts, awsconfig.WithRegion(parts[3]))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return "", fmt.Errorf("GetSecretValue: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", arn)
	}

	var fields map[string]string
	if json.Unmarshal([]byte(*result.SecretString), &fields) == nil {
		if key := fields["WARPBUILD_API_KEY"]; key != "" {
			return key, nil
		}
		return "", fmt.Errorf("secret %s has no WARPBUILD_API_KEY field", arn)
	}
	return *result.SecretString, nil
}
