package reconcile

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/common-fate/clio"
)

type DeploymentLister interface {
	ListDeployments(ctx context.Context, customerID string) ([]alertlogic.Deployment, error)
}

// FindDeployment returns the first AWS deployment of the customer protecting
// awsAccountID.
func FindDeployment(ctx context.Context, api DeploymentLister, customerID, awsAccountID string) Result[*alertlogic.Deployment] {
	deployments, err := api.ListDeployments(ctx, customerID)
	if err != nil {
		clio.Errorw("failed to list deployments", "customer", customerID, "error", err)
		return failed[*alertlogic.Deployment](err)
	}
	for i := range deployments {
		d := &deployments[i]
		if d.Platform.Type == alertlogic.PlatformAWS && d.Platform.ID == awsAccountID {
			clio.Infow("found deployment", "customer", customerID, "account", awsAccountID, "deployment", d.ID)
			return found(d)
		}
	}
	clio.Infow("account is not protected by any deployment", "customer", customerID, "account", awsAccountID)
	return notFound[*alertlogic.Deployment]()
}
