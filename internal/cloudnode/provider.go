// Package cloudnode resolves hardware capacity and an on-demand/spot cost
// estimate for nodes whose backing hardware is an EC2 instance (a
// cloud-hosted Ganeti-style node group). Adapted from the teacher's
// internal/aws: the AWS SDK plumbing is kept verbatim in shape, but the
// output feeds the Formatter's cost column and the allocate report's cost
// enrichment instead of a Kubernetes NodeTemplate.
package cloudnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
)

const credentialCheckTimeout = 3 * time.Second

var (
	ErrAWSCredentials  = errors.New("AWS credentials not found; set AWS_PROFILE, run 'aws sso login', or configure ~/.aws/credentials")
	ErrNoInstanceTypes = errors.New("no instance types match the specified filters")
)

// Architecture names an EC2 instance's CPU architecture.
type Architecture string

const (
	ArchAMD64   Architecture = "amd64"
	ArchARM64   Architecture = "arm64"
	ArchUnknown Architecture = ""
)

// InstanceType describes one EC2 instance type's hardware shape, priced.
type InstanceType struct {
	InstanceType      string
	Region            string
	Family            string
	Generation        int
	Size              string
	VCPUs             int32
	MemoryMiB         int64
	LocalDiskMiB      int64
	Architecture      Architecture
	CurrentGeneration bool

	OnDemandPricePerHour float64
	SpotPricePerHour     float64
}

// MonthlyCost estimates the on-demand monthly cost using the average
// number of hours in a month (730.5).
func (it InstanceType) MonthlyCost() float64 {
	return it.OnDemandPricePerHour * 730.5
}

// Provider abstracts the retrieval of EC2 instance types and pricing.
type Provider interface {
	GetInstanceTypes(ctx context.Context, filter InstanceFilter) ([]InstanceType, error)
	GetSpotPrices(ctx context.Context, instanceTypes []string) (map[string]float64, error)
	EnrichWithPricing(ctx context.Context, types []InstanceType) (int, error)
	Region() string
}

// InstanceFilter constrains which instance types to consider. ExactTypes,
// when non-empty, asks EC2 for exactly those type names instead of
// listing the region and filtering client-side — the shape NodeCosts
// uses to resolve one node's backing instance type by name.
type InstanceFilter struct {
	Families              []string
	MinVCPUs              int32
	MaxVCPUs              int32
	Architectures         []Architecture
	CurrentGenerationOnly bool
	ExcludeBareMetal      bool
	ExcludeBurstable      bool
	ExactTypes            []string
}

// ec2API is a minimal interface for the EC2 calls we need.
type ec2API interface {
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
	DescribeSpotPriceHistory(ctx context.Context, params *ec2.DescribeSpotPriceHistoryInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error)
}

// pricingAPI is a minimal interface for the Pricing API calls we need.
type pricingAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// EC2Provider implements Provider using the AWS SDK.
type EC2Provider struct {
	ec2Client     ec2API
	pricingClient pricingAPI
	region        string
	cache         *FileCache
}

// NewEC2Provider creates a provider using the default AWS SDK config chain.
// IMDS (EC2 metadata) is disabled to avoid long timeouts when running
// locally, so instance-profile credentials are not used even on EC2;
// credentials come from environment variables or the shared AWS
// config/credentials files.
func NewEC2Provider(ctx context.Context, region string, cacheDir string) (*EC2Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithEC2IMDSClientEnableState(imds.ClientDisabled),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAWSCredentials, err)
	}

	credCtx, cancel := context.WithTimeout(ctx, credentialCheckTimeout)
	defer cancel()
	if _, err := cfg.Credentials.Retrieve(credCtx); err != nil {
		return nil, ErrAWSCredentials
	}

	ec2Client := ec2.NewFromConfig(cfg)

	// Pricing API is only available in us-east-1.
	pricingCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithEC2IMDSClientEnableState(imds.ClientDisabled),
	)
	if err != nil {
		return nil, fmt.Errorf("loading pricing config: %w", err)
	}
	pricingClient := pricing.NewFromConfig(pricingCfg)

	var cache *FileCache
	if cacheDir != "" {
		cache = NewFileCache(cacheDir)
	}

	return &EC2Provider{
		ec2Client:     ec2Client,
		pricingClient: pricingClient,
		region:        region,
		cache:         cache,
	}, nil
}

// Region returns the AWS region.
func (p *EC2Provider) Region() string {
	return p.region
}
