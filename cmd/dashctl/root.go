package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"assetdesk-client/internal/bootstrap"
	platformconfig "assetdesk-client/internal/platform/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool
	noDotEnv   bool
	lookupEnv  func(string) (string, bool)

	app *bootstrap.App
}

// close releases the runtime built for the command. Post-run hooks are
// skipped when a command fails, so this runs after Execute instead.
func (c *cli) close(ctx context.Context) {
	if c.app != nil {
		c.app.Close(ctx)
		c.app = nil
	}
}

func execute(ctx context.Context, args []string, lookupEnv func(string) (string, bool), stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{lookupEnv: lookupEnv}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer c.close(ctx)
	return root.ExecuteContext(ctx)
}

func newRootCmd(c *cli) *cobra.Command {

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Command line client for the asset management dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build(cmd.Context(), bootstrap.Options{
				ConfigPath:    c.configPath,
				Console:       cmd.ErrOrStderr(),
				DisableDotEnv: c.noDotEnv,
				Env:           c.env,
			})
			if err != nil {
				return err
			}
			c.app = app
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $DASHBOARD_CONFIG or ./.dashctl.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&c.noDotEnv, "no-dotenv", false, "do not load .env")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newRequestCmd(c),
		newDownloadCmd(c),
		newServeMockCmd(c),
	)
	return root
}

// env layers --verbose over the injected environment.
func (c *cli) env(key string) (string, bool) {
	if c.verbose && key == platformconfig.EnvLogLevel {
		return "debug", true
	}
	if c.lookupEnv == nil {
		return "", false
	}
	return c.lookupEnv(key)
}
