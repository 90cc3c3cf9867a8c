package scopectl

import (
	"os"
	"strings"

	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/discovery"
	"github.com/common-fate/clio"
	"github.com/common-fate/clio/clierr"
	"github.com/urfave/cli/v2"
)

var DiscoverCommand = cli.Command{
	Name:  "discover",
	Usage: "List the VPCs carrying coverage tags",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "region", Usage: "Region to search, may be repeated"},
		&cli.StringFlag{Name: "tags", Usage: "Coverage tags as key:value,... (defaults to CoverageTags)"},
		&cli.BoolFlag{Name: "publish", Usage: "Publish the result as a scope update to the registration topic"},
		&cli.StringFlag{Name: "account", Usage: "Account the scope update is published for, defaults to the caller's account"},
	},
	Action: func(c *cli.Context) error {
		var checks []func(config.Config) error
		if c.Bool("publish") {
			checks = append(checks, config.RequireDiscovery)
		}
		a, err := loadApp(c, checks...)
		if err != nil {
			return err
		}

		raw := c.String("tags")
		if raw == "" {
			raw = a.Config.CoverageTags
		}
		tags, err := discovery.ParseCoverageTags(raw)
		if err != nil {
			return clierr.New(err.Error(), clierr.Info("Pass coverage tags with --tags or set CoverageTags"))
		}
		regions, err := config.ParseRegions(strings.Join(c.StringSlice("region"), ","))
		if err != nil {
			return err
		}
		if len(regions) == 0 {
			regions = a.DiscoveryRegions()
		}

		d := discovery.Discoverer{EC2: a.EC2, Tags: tags}
		assets, err := d.Discover(c.Context, regions)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, asset := range assets {
			rows = append(rows, []string{asset.Key, asset.Type})
		}
		printTable(os.Stdout, []string{"KEY", "TYPE"}, rows)

		if !c.Bool("publish") {
			return nil
		}
		account := c.String("account")
		if account == "" {
			account, err = a.CallerAccountID(c.Context)
			if err != nil {
				return err
			}
		}
		id, err := discovery.Publish(c.Context, a.SNS(), a.Config.RegistrationTopicARN, account, assets)
		if err != nil {
			return err
		}
		clio.Successf("published scope update %s for account %s", id, account)
		return nil
	},
}
