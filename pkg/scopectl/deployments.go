package scopectl

import (
	"os"
	"strings"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/urfave/cli/v2"
)

var DeploymentsCommand = cli.Command{
	Name:  "deployments",
	Usage: "List the AWS deployments of a customer and their include scope",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "customer", Usage: "Customer id, defaults to the owner of the API credentials"},
		&cli.StringFlag{Name: "account", Usage: "Only show the deployment of this AWS account"},
	},
	Action: func(c *cli.Context) error {
		a, err := loadApp(c, config.RequireSecret)
		if err != nil {
			return err
		}
		creds, err := apiCredentials(c, a)
		if err != nil {
			return err
		}
		client, err := a.Client(creds)
		if err != nil {
			return err
		}
		customer := c.String("customer")
		if customer == "" {
			customer = creds.CustomerID
		}

		deployments, err := client.ListDeployments(c.Context, customer)
		if err != nil {
			return err
		}
		printTable(os.Stdout, []string{"ID", "NAME", "ACCOUNT", "VERSION", "INCLUDE"}, deploymentRows(deployments, c.String("account")))
		return nil
	},
}

func deploymentRows(deployments []alertlogic.Deployment, account string) [][]string {
	var rows [][]string
	for _, d := range deployments {
		if d.Platform.Type != alertlogic.PlatformAWS {
			continue
		}
		if account != "" && d.Platform.ID != account {
			continue
		}
		keys := make([]string, 0, len(d.Scope.Include))
		for _, e := range d.Scope.Include {
			keys = append(keys, e.Key)
		}
		rows = append(rows, []string{d.ID, d.Name, d.Platform.ID, string(d.Version), strings.Join(keys, "\n")})
	}
	return rows
}
