package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nachoal/planchat-go/config"
	"github.com/nachoal/planchat-go/mockserver"
	"github.com/nachoal/planchat-go/transport"
)

var (
	mockScript string

	serveMockCmd = &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a scripted planning backend for local testing",
		Args:  cobra.NoArgs,
		RunE:  runServeMock,
	}
)

func init() {
	serveMockCmd.Flags().String("addr", "", "Listen address (default :8089)")
	serveMockCmd.Flags().Duration("chunk-delay", 0, "Delay between streamed frames (default 40ms)")
	serveMockCmd.Flags().StringVar(&mockScript, "script", "", "JSONL reply script replayed for every message")

	viper.BindPFlag(config.KeyMockAddr, serveMockCmd.Flags().Lookup("addr"))
	viper.BindPFlag(config.KeyMockChunkDelay, serveMockCmd.Flags().Lookup("chunk-delay"))
}

func runServeMock(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	var script []transport.Frame
	if mockScript != "" {
		f, err := os.Open(mockScript)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		script, err = mockserver.LoadScript(f)
		f.Close()
		if err != nil {
			return err
		}
		log.Info().Int("frames", len(script)).Str("script", mockScript).Msg("Loaded reply script")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mockserver.New(mockserver.Options{
		ChunkDelay: cfg.Mock.ChunkDelay,
		Script:     script,
		Logger:     log,
	})
	return srv.Run(ctx, cfg.Mock.Addr)
}
