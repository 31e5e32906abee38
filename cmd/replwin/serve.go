package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/replwin/console"
	"pkt.systems/replwin/internal/appconfig"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noConfig bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive sessions over SSH",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SSH.Addr = addr
			}
			return serve(cmd.Context(), cfg, noConfig)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ssh.addr)")
	cmd.Flags().BoolVar(&noConfig, "noconfig", false, "skip the evaluator startup script")
	return cmd
}

func serve(ctx context.Context, cfg appconfig.Config, noConfig bool) error {
	logger := pslog.Ctx(ctx)
	rt, err := newRuntime(ctx, cfg, noConfig)
	if err != nil {
		return err
	}
	server := &console.Server{
		Addr:               cfg.SSH.Addr,
		HostKeyPath:        cfg.SSH.HostKeyPath,
		AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
		Open: func(ctx context.Context) (console.Attached, error) {
			return rt.open(ctx, "")
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		closed := rt.closeAll(logger)
		logger.Info("serve shutdown", "sessions_closed", closed)
		return nil
	})
	logger.Info("serve start", "addr", cfg.SSH.Addr, "evaluator", cfg.Evaluator.Kind)
	return g.Wait()
}
