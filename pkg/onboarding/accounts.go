package onboarding

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/pkg/errors"
)

type OrganizationsAPI interface {
	ListAccountsForParent(ctx context.Context, params *organizations.ListAccountsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error)
}

// ProtectedAccounts returns the active accounts directly under the included
// organizational units, leaving out those directly under an excluded unit
// and the core accounts. The result is sorted.
func ProtectedAccounts(ctx context.Context, api OrganizationsAPI, include, exclude, core []string) ([]string, error) {
	skip := map[string]bool{}
	for _, a := range core {
		skip[a] = true
	}
	for _, ou := range exclude {
		accounts, err := activeAccounts(ctx, api, ou)
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			skip[a] = true
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, ou := range include {
		accounts, err := activeAccounts(ctx, api, ou)
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			if skip[a] || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out, nil
}

func activeAccounts(ctx context.Context, api OrganizationsAPI, parentID string) ([]string, error) {
	var ids []string
	p := organizations.NewListAccountsForParentPaginator(api, &organizations.ListAccountsForParentInput{
		ParentId: aws.String(parentID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing accounts of %s", parentID)
		}
		for _, a := range page.Accounts {
			if a.Status == types.AccountStatusActive {
				ids = append(ids, aws.ToString(a.Id))
			}
		}
	}
	return ids, nil
}
