package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drgolem/roomcast/internal/broadcaster"
	"github.com/drgolem/roomcast/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "roomcast",
	Short: "Multi-room SlimProto audio broadcaster",
	Long: `roomcast captures audio from a local input device and broadcasts it
to any number of SlimProto-compatible players (Squeezebox and
compatible clients) on the network, encoding each client's stream to
the format it negotiates over the control channel.`,
	RunE: runServe,
}

// Execute adds all child commands to the root command and runs it. It
// is called once by main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "roomcast: %v\n", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	b, err := broadcaster.New(cfg)
	if err != nil {
		return fmt.Errorf("assemble broadcaster: %w", err)
	}

	if err := b.Start(); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("roomcast: signal received, shutting down", "signal", sig)
		cancel()
	}()

	<-ctx.Done()

	if err := b.Stop(); err != nil {
		slog.Error("roomcast: error during shutdown", "error", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default ./config.yaml)")
	rootCmd.PersistentFlags().Int("slimproto-port", 3483, "SlimProto control port")
	rootCmd.PersistentFlags().Int("http-port", 9000, "HTTP data channel port")
	rootCmd.PersistentFlags().String("encoder-format", "flac", "output encoding: wave or flac")
	rootCmd.PersistentFlags().Int("device-index", -1, "capture device index (-1 for default)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("input-file", "", "decode this WAV/FLAC/MP3 file instead of capturing live audio (offline testing)")
	rootCmd.PersistentFlags().String("record-path", "", "also write the broadcast to this file")

	cobra.CheckErr(viper.BindPFlag("slimproto_port", rootCmd.PersistentFlags().Lookup("slimproto-port")))
	cobra.CheckErr(viper.BindPFlag("http_port", rootCmd.PersistentFlags().Lookup("http-port")))
	cobra.CheckErr(viper.BindPFlag("encoder_format", rootCmd.PersistentFlags().Lookup("encoder-format")))
	cobra.CheckErr(viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device-index")))
	cobra.CheckErr(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("input_file", rootCmd.PersistentFlags().Lookup("input-file")))
	cobra.CheckErr(viper.BindPFlag("record_path", rootCmd.PersistentFlags().Lookup("record-path")))
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "roomcast: config error: %v\n", err)
		os.Exit(1)
	}
}
