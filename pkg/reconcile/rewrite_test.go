package reconcile

import (
	"context"
	"testing"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	vpc := alertlogic.ScopeEntry{Key: "/aws/us-east-1/vpc/vpc-1", Type: "vpc", Policy: &alertlogic.PolicyRef{ID: "P1"}}
	region := regionEntry("us-east-1", "P1")

	putVPC := func(include []alertlogic.ScopeEntry, policyID string) []alertlogic.ScopeEntry {
		return scope.Put(include, alertlogic.ScopeEntry{Key: vpc.Key, Type: "vpc", Policy: &alertlogic.PolicyRef{ID: policyID}})
	}
	removeVPC := func(include []alertlogic.ScopeEntry, _ string) []alertlogic.ScopeEntry {
		return scope.Remove(include, vpc.Key)
	}

	tests := []struct {
		name        string
		deployments []alertlogic.Deployment
		policies    []alertlogic.Policy
		rewrite     RewriteFunc
		wantAction  Action
		wantInclude []alertlogic.ScopeEntry
	}{
		{
			name:        "put in front",
			deployments: []alertlogic.Deployment{awsDeployment("D1", account, region)},
			policies:    []alertlogic.Policy{{ID: "P1", Name: "Professional"}},
			rewrite:     putVPC,
			wantAction:  ActionUpdated,
			wantInclude: []alertlogic.ScopeEntry{vpc, region},
		},
		{
			name:        "remove",
			deployments: []alertlogic.Deployment{awsDeployment("D1", account, vpc, region)},
			policies:    []alertlogic.Policy{{ID: "P1", Name: "Professional"}},
			rewrite:     removeVPC,
			wantAction:  ActionUpdated,
			wantInclude: []alertlogic.ScopeEntry{region},
		},
		{
			name:        "unchanged",
			deployments: []alertlogic.Deployment{awsDeployment("D1", account, vpc, region)},
			policies:    []alertlogic.Policy{{ID: "P1", Name: "Professional"}},
			rewrite:     putVPC,
			wantAction:  ActionUnchanged,
			wantInclude: []alertlogic.ScopeEntry{vpc, region},
		},
		{
			name:       "no deployment",
			policies:   []alertlogic.Policy{{ID: "P1", Name: "Professional"}},
			rewrite:    putVPC,
			wantAction: ActionSkipped,
		},
		{
			name:        "no policy",
			deployments: []alertlogic.Deployment{awsDeployment("D1", account, region)},
			rewrite:     putVPC,
			wantAction:  ActionSkipped,
			wantInclude: []alertlogic.ScopeEntry{region},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.deployments = tt.deployments
			api.policies = tt.policies
			r := Reconciler{API: api, OwnerID: customer}

			out, err := r.Rewrite(context.Background(), RewriteRequest{CustomerID: customer, AWSAccountID: account, Rewrite: tt.rewrite})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, out.Action)
			if tt.wantAction == ActionUpdated {
				assert.Len(t, api.updates, 1)
			} else {
				assert.Empty(t, api.updates)
			}
			if len(api.deployments) > 0 {
				assert.Equal(t, tt.wantInclude, api.deployments[0].Scope.Include)
			}
		})
	}
}

func TestRewrite_DeploymentWithoutVersionIsNotWritten(t *testing.T) {
	api := newFakeAPI()
	api.policies = []alertlogic.Policy{{ID: "P1", Name: "Professional"}}
	d := awsDeployment("D1", account)
	d.Version = nil
	api.deployments = []alertlogic.Deployment{d}
	r := Reconciler{API: api, OwnerID: customer}

	_, err := r.Rewrite(context.Background(), RewriteRequest{
		CustomerID:   customer,
		AWSAccountID: account,
		Rewrite: func(include []alertlogic.ScopeEntry, policyID string) []alertlogic.ScopeEntry {
			return scope.Put(include, regionEntry("us-east-1", policyID))
		},
	})
	assert.ErrorIs(t, err, ErrNoVersion)
	assert.Empty(t, api.updates)
}
