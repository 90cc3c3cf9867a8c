package reconcile

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/common-fate/clio"
)

// RewriteFunc returns the new include scope of a deployment given its
// current include scope and the resolved policy id.
type RewriteFunc func(include []alertlogic.ScopeEntry, policyID string) []alertlogic.ScopeEntry

type RewriteRequest struct {
	CustomerID   string
	AWSAccountID string
	Rewrite      RewriteFunc
}

// Rewrite replaces the include scope of the account's deployment with the
// result of req.Rewrite, in a single versioned update. Unlike UpdateScope
// entries may be removed or reordered. A missing deployment or policy is a
// no-op, as is a rewrite which leaves the scope unchanged.
func (r *Reconciler) Rewrite(ctx context.Context, req RewriteRequest) (Outcome, error) {
	lookup := FindDeployment(ctx, r.API, req.CustomerID, req.AWSAccountID)
	if !lookup.Found() {
		return Outcome{Action: ActionSkipped, Reason: "deployment " + lookup.Reason.String()}, nil
	}
	d := lookup.Value

	policy := ResolvePolicyID(ctx, r.API, r.OwnerID)
	if !policy.Found() {
		return Outcome{Action: ActionSkipped, Deployment: d, Reason: "policy " + policy.Reason.String()}, nil
	}

	include := req.Rewrite(d.Scope.Include, policy.Value)
	if include == nil {
		include = []alertlogic.ScopeEntry{}
	}
	if sameEntries(include, d.Scope.Include) {
		clio.Infow("deployment scope already up to date", "deployment", d.ID)
		return Outcome{Action: ActionUnchanged, Deployment: d}, nil
	}

	updated, err := r.writeInclude(ctx, req.CustomerID, d, include)
	if err != nil {
		return Outcome{}, err
	}
	clio.Infow("rewrote deployment scope", "deployment", d.ID, "entries", len(include))
	return Outcome{Action: ActionUpdated, Deployment: updated}, nil
}

func sameEntries(a, b []alertlogic.ScopeEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
