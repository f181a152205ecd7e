package main

import (
	"github.com/spf13/cobra"

	"assetdesk-client/internal/bootstrap"
	platformconfig "assetdesk-client/internal/platform/config"
	platformlogging "assetdesk-client/internal/platform/logging"
)

func newServeMockCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run the development backend (login, refresh, assets, export)",
		Args:  cobra.NoArgs,
		// the mock backend needs no token store or client
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := platformconfig.NewLoader().
				WithDotEnv(!c.noDotEnv).
				WithPath(c.configPath).
				WithEnv(c.env).
				Load()
			if err != nil {
				return err
			}
			cfg := res.Config
			if addr != "" {
				cfg.Mock.Addr = addr
			}

			logger, err := platformlogging.New(platformlogging.Config{
				Level:    cfg.Log.Level,
				Dir:      cfg.Log.Dir,
				Filename: cfg.Log.File,
				Console:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer logger.Close()

			return bootstrap.ServeMock(cmd.Context(), cfg, logger, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default mock.addr)")
	return cmd
}
