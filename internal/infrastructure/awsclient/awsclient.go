package awsclient

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"ppesuite/internal/bootstrap/config"
	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
)

// Load resolves AWS credentials and region from the default chain. The region
// in cfg wins over AWS_REGION when set.
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	if ctx == nil {
		return aws.Config{}, errors.New("context is required")
	}

	opts := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if region := strings.TrimSpace(cfg.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errs.WithStack(errs.Wrap(err, "load aws config"))
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.awsclient")),
		"aws config loaded",
		slog.String("region", awsCfg.Region),
		slog.String("endpoint", cfg.Endpoint),
	)
	return awsCfg, nil
}

// Endpoint returns the override endpoint (localstack, dynamodb-local) or nil.
func Endpoint(cfg config.AWSConfig) *string {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}
