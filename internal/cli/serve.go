package cli

import (
	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neurodoc/internal/handler"
)

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := e.runtime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := rt.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}
			app := handler.NewApp(rt.Ops, cfg, rt.Log.Named("http"))

			go func() {
				<-cmd.Context().Done()
				rt.Log.Info("shutting down")
				_ = app.Shutdown()
			}()

			rt.Log.Info("listening", zap.String("addr", cfg.Addr))
			return app.Listen(cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
