package scopectl

import (
	"fmt"

	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/reconcile"
	"github.com/common-fate/clio/clierr"
	"github.com/urfave/cli/v2"
)

var PolicyCommand = cli.Command{
	Name:  "policy",
	Usage: "Print the protection policy new scope entries are assigned to",
	Action: func(c *cli.Context) error {
		a, err := loadApp(c, config.RequireSecret)
		if err != nil {
			return err
		}
		creds, err := apiCredentials(c, a)
		if err != nil {
			return err
		}
		api, err := a.NewAPI(creds)
		if err != nil {
			return err
		}

		policy := reconcile.ResolvePolicyID(c.Context, api, creds.CustomerID)
		switch policy.Reason {
		case reconcile.TransportError:
			return clierr.New("unable to list policies", clierr.Error(policy.Err))
		case reconcile.NotFound:
			return clierr.New(fmt.Sprintf("customer %s has no eligible policy", creds.CustomerID),
				clierr.Infof("Scope entries need one of the %v policies", reconcile.EligiblePolicyNames))
		}
		fmt.Println(policy.Value)
		return nil
	},
}
