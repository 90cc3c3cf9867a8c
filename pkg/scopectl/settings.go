package scopectl

import (
	"os"
	"strconv"
	"strings"

	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/urfave/cli/v2"
)

var SettingsCommand = cli.Command{
	Name:  "settings",
	Usage: "Print the effective settings",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		printTable(os.Stdout, []string{"SETTING", "VALUE"}, settingsRows(cfg))
		return nil
	},
}

func settingsRows(cfg config.Config) [][]string {
	return [][]string{
		{config.EnvAPIEndpoint, cfg.APIEndpoint},
		{config.EnvFullRegionCoverage, strconv.FormatBool(cfg.FullRegionCoverage)},
		{config.EnvTargetRegion, strings.Join(cfg.TargetRegions, ",")},
		{config.EnvSecret, cfg.SecretName},
		{config.EnvSecretRegion, cfg.SecretRegion},
		{config.EnvRegistrationTopic, cfg.RegistrationTopicARN},
		{config.EnvCoverageTags, cfg.CoverageTags},
		{config.EnvTagKeys, strings.Join(cfg.TagKeys, ",")},
		{config.EnvTagPublicValues, strings.Join(cfg.TagPublicValues, ",")},
		{config.EnvTagPrivateValues, strings.Join(cfg.TagPrivateValues, ",")},
		{config.EnvResolveAccountNames, strconv.FormatBool(cfg.ResolveAccountNames)},
		{config.EnvAPIMaxAttempts, strconv.FormatUint(cfg.APIMaxAttempts, 10)},
		{config.EnvAPIRequestsPerSecond, strconv.Itoa(cfg.APIRequestsPerSecond)},
	}
}
