// Package accounts resolves display names for AWS accounts.
package accounts

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/common-fate/clio"
)

type OrganizationsAPI interface {
	DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error)
}

// Directory names accounts after their AWS Organizations account name.
// A nil API, or any lookup failure, yields the account id itself.
type Directory struct {
	API OrganizationsAPI
}

func (d Directory) Name(ctx context.Context, accountID string) string {
	if d.API == nil {
		return accountID
	}
	out, err := d.API.DescribeAccount(ctx, &organizations.DescribeAccountInput{AccountId: aws.String(accountID)})
	if err != nil {
		clio.Infow("describe account failed, using the account id as name", "account", accountID, "error", err)
		return accountID
	}
	if out.Account == nil || aws.ToString(out.Account.Name) == "" {
		return accountID
	}
	return *out.Account.Name
}
