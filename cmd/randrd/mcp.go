package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/logging"
	"github.com/1broseidon/randrd/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdio. It forwards tool calls to the running daemon
and is meant to be launched by MCP clients, for example:

  claude mcp add randrd -- randrd mcp serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol; logs go to stderr only.
			logger, err := logging.New("warn", false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			client, err := newClient()
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(client, logger.Named("mcp"))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := server.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mcp server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	})
	return cmd
}
