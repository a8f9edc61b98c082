package cloudnode

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// GetInstanceTypes retrieves EC2 instance types matching the filter.
func (p *EC2Provider) GetInstanceTypes(ctx context.Context, filter InstanceFilter) ([]InstanceType, error) {
	var filters []ec2types.Filter

	if filter.CurrentGenerationOnly {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("current-generation"),
			Values: []string{"true"},
		})
	}

	if filter.ExcludeBareMetal {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("bare-metal"),
			Values: []string{"false"},
		})
	}

	if filter.ExcludeBurstable {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("burstable-performance-supported"),
			Values: []string{"false"},
		})
	}

	var allTypes []ec2types.InstanceTypeInfo
	var nextToken *string

	var exactTypes []ec2types.InstanceType
	for _, t := range filter.ExactTypes {
		exactTypes = append(exactTypes, ec2types.InstanceType(t))
	}

	for {
		input := &ec2.DescribeInstanceTypesInput{
			Filters:       filters,
			InstanceTypes: exactTypes,
			NextToken:     nextToken,
		}
		// EC2 rejects MaxResults when InstanceTypes is set.
		if len(exactTypes) == 0 {
			input.MaxResults = aws.Int32(100)
		}

		output, err := p.ec2Client.DescribeInstanceTypes(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describing instance types: %w", err)
		}

		allTypes = append(allTypes, output.InstanceTypes...)

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	var types []InstanceType
	familySet := toSet(filter.Families)
	archSet := toArchSet(filter.Architectures)

	for _, it := range allTypes {
		t := convertInstanceType(it, p.region)

		if len(familySet) > 0 && !familySet[t.Family] {
			continue
		}
		if len(archSet) > 0 && !archSet[t.Architecture] {
			continue
		}
		if filter.MinVCPUs > 0 && t.VCPUs < filter.MinVCPUs {
			continue
		}
		if filter.MaxVCPUs > 0 && t.VCPUs > filter.MaxVCPUs {
			continue
		}

		types = append(types, t)
	}

	if len(types) == 0 {
		return nil, ErrNoInstanceTypes
	}

	return types, nil
}

// convertInstanceType maps an EC2 InstanceTypeInfo to an InstanceType.
func convertInstanceType(it ec2types.InstanceTypeInfo, region string) InstanceType {
	t := InstanceType{
		InstanceType: string(it.InstanceType),
		Region:       region,
	}

	t.Family, t.Generation, t.Size = parseInstanceType(string(it.InstanceType))

	if it.VCpuInfo != nil && it.VCpuInfo.DefaultVCpus != nil {
		t.VCPUs = *it.VCpuInfo.DefaultVCpus
	}

	if it.MemoryInfo != nil && it.MemoryInfo.SizeInMiB != nil {
		t.MemoryMiB = *it.MemoryInfo.SizeInMiB
	}

	// Instance-store capacity varies by type and is not surfaced by every
	// API version consistently; node disk capacity for EC2-backed nodes is
	// not resolved from EC2 at all, and LocalDiskMiB is left at its zero
	// value here.

	if it.ProcessorInfo != nil {
		for _, arch := range it.ProcessorInfo.SupportedArchitectures {
			switch arch {
			case ec2types.ArchitectureTypeX8664:
				t.Architecture = ArchAMD64
			case ec2types.ArchitectureTypeArm64:
				t.Architecture = ArchARM64
			}
		}
	}

	if it.CurrentGeneration != nil {
		t.CurrentGeneration = *it.CurrentGeneration
	}

	return t
}

// parseInstanceType extracts family, generation, and size from an instance
// type name, e.g. "m5.xlarge" → ("m5", 5, "xlarge").
var instanceTypeRegex = regexp.MustCompile(`^([a-z]+)(\d+)([a-z]*)\.(.+)$`)

func parseInstanceType(instanceType string) (family string, generation int, size string) {
	parts := strings.SplitN(instanceType, ".", 2)
	if len(parts) != 2 {
		return instanceType, 0, ""
	}

	family = parts[0]
	size = parts[1]

	matches := instanceTypeRegex.FindStringSubmatch(instanceType)
	if len(matches) >= 5 {
		gen, _ := strconv.Atoi(matches[2])
		generation = gen
	}

	return family, generation, size
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

func toArchSet(archs []Architecture) map[Architecture]bool {
	s := make(map[Architecture]bool, len(archs))
	for _, a := range archs {
		s[a] = true
	}
	return s
}
