package reconcile

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/common-fate/clio"
)

// EligiblePolicyNames are the protection tiers scope entries may be assigned to.
var EligiblePolicyNames = []string{"Professional", "Enterprise"}

type PolicyLister interface {
	ListPolicies(ctx context.Context, customerID string) ([]alertlogic.Policy, error)
}

// ResolvePolicyID returns the id of the first eligible policy in listing
// order. Neither eligible name takes precedence over the other.
func ResolvePolicyID(ctx context.Context, api PolicyLister, customerID string) Result[string] {
	policies, err := api.ListPolicies(ctx, customerID)
	if err != nil {
		clio.Errorw("failed to list policies", "customer", customerID, "error", err)
		return failed[string](err)
	}
	for _, p := range policies {
		if isEligible(p.Name) {
			clio.Infow("resolved policy", "customer", customerID, "policy", p.ID, "name", p.Name)
			return found(p.ID)
		}
	}
	clio.Errorw("no eligible policy found", "customer", customerID, "eligible", EligiblePolicyNames)
	return notFound[string]()
}

func isEligible(name string) bool {
	for _, n := range EligiblePolicyNames {
		if name == n {
			return true
		}
	}
	return false
}
