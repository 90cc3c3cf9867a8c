package scopectl

import (
	"github.com/alertlogic/scopesync/pkg/app"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/secrets"
	"github.com/common-fate/clio/clierr"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context, checks ...func(config.Config) error) (config.Config, error) {
	cfg, err := config.Load(config.LoadOpts{File: c.Path("config"), EnvFile: c.Path("env-file")})
	if err != nil {
		return config.Config{}, clierr.New(err.Error(),
			clierr.Info("Settings are read from the environment, optionally from a TOML file passed with --config and a dotenv file passed with --env-file"),
		)
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return config.Config{}, clierr.New(err.Error())
		}
	}
	return cfg, nil
}

func loadApp(c *cli.Context, checks ...func(config.Config) error) (*app.App, error) {
	cfg, err := loadConfig(c, checks...)
	if err != nil {
		return nil, err
	}
	return app.New(c.Context, cfg)
}

// apiCredentials reads the monitoring API keys from the configured secret.
func apiCredentials(c *cli.Context, a *app.App) (secrets.APICredentials, error) {
	creds, err := secrets.LoadAPICredentials(c.Context, a.Secrets(), a.Config.SecretRegion, a.Config.SecretName)
	if err != nil {
		return secrets.APICredentials{}, clierr.New("unable to read the monitoring API credentials",
			clierr.Error(err),
			clierr.Infof("Check that secret %q exists in %s and that your AWS credentials can read it", a.Config.SecretName, a.Config.SecretRegion),
		)
	}
	return creds, nil
}
