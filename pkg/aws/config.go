package aws

import (
	"context"
	"fmt"
	"log"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// endpointEnvVars are checked in order; the first non-empty one wins.
var endpointEnvVars = []string{"AWS_ENDPOINT", "AWS_SQS_ENDPOINT", "AWS_DYNAMODB_ENDPOINT", "AWS_S3_ENDPOINT"}

// LoadAWSConfig loads the default AWS config. When one of the endpoint env vars
// is set (LocalStack), every SDK client built from the config targets that URL.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}

	endpoint := customEndpoint()
	if endpoint == "" {
		return cfg, nil
	}

	signingRegion := cfg.Region
	resolver := sdkaws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (sdkaws.Endpoint, error) {
		sr := signingRegion
		if sr == "" {
			sr = region
		}
		return sdkaws.Endpoint{
			URL:               endpoint,
			SigningRegion:     sr,
			HostnameImmutable: true,
		}, nil
	})
	cfg.EndpointResolverWithOptions = resolver

	log.Printf("[AWS] custom endpoint configured: %s region=%q", endpoint, signingRegion)
	return cfg, nil
}

func customEndpoint() string {
	for _, key := range endpointEnvVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
