package cfaws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// LoadConfig loads the default AWS config, pinned to region when one is given.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "loading AWS config")
	}
	return cfg, nil
}

// AccountIDFromARN returns the account id field of an ARN such as
// arn:aws:lambda:us-east-1:123456789012:function:register.
func AccountIDFromARN(arn string) (string, bool) {
	parts := strings.Split(arn, ":")
	if len(parts) < 5 || parts[4] == "" {
		return "", false
	}
	return parts[4], true
}

// CallerAccountID resolves the account of the current credentials. The
// Lambda handlers read it from their own function ARN; this is the
// fallback for local runs.
func CallerAccountID(ctx context.Context, client CallerIdentityAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, "calling sts:GetCallerIdentity")
	}
	if out.Account == nil {
		return "", errors.New("sts:GetCallerIdentity returned no account")
	}
	clio.Debugw("resolved caller identity", "account", *out.Account, "arn", aws.ToString(out.Arn))
	return *out.Account, nil
}
