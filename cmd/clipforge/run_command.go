package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/spf13/cobra"

	"clipforge/internal/compose"
	"clipforge/internal/config"
	"clipforge/internal/cutting"
	"clipforge/internal/daemon"
	"clipforge/internal/fetch"
	"clipforge/internal/finish"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
	"clipforge/internal/publish"
	"clipforge/internal/queue"
	"clipforge/internal/storage"
	"clipforge/internal/tier"
	"clipforge/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the processing daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	stages, err := buildStages(signalCtx, cfg, logger)
	if err != nil {
		return err
	}

	manager := workflow.NewManager(cfg, store, logger, stages)
	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("clipforge daemon shutting down")
	return nil
}

func buildStages(ctx context.Context, cfg *config.Config, logger *slog.Logger) (workflow.StageSet, error) {
	runner, err := ffmpeg.NewRunner(cfg.FFmpeg.FFmpegBinary)
	if err != nil {
		return workflow.StageSet{}, err
	}
	inspector := ffmpeg.NewInspector(cfg.FFmpeg.FFprobeBinary)
	policy := tier.NewPolicy(cfg.Tiers)

	fetcher, err := fetch.New(cfg.FFmpeg.YtDlpBinary, cfg.Paths.DownloadDir, inspector, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}
	cutter, err := cutting.New(cfg, runner, inspector, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}
	composer, err := compose.New(cfg, runner, inspector, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}
	artifacts, err := storage.NewMinio(ctx, cfg.Storage)
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("connect artifact storage: %w", err)
	}
	finisher, err := finish.New(cfg, runner, artifacts, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}

	credentials := publish.NewFileCredentialStore(cfg.CredentialsDir())
	tokens, err := publish.NewTokenManager(cfg.YouTube, credentials)
	if err != nil {
		return workflow.StageSet{}, err
	}
	uploader, err := publish.NewUploader(cfg.YouTube, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}
	coordinator, err := publish.NewCoordinator(tokens, uploader, policy, logger)
	if err != nil {
		return workflow.StageSet{}, err
	}

	return workflow.StageSet{
		Fetcher:   fetch.NewStage(cfg, fetcher, logger),
		Cutter:    cutting.NewStage(cfg, cutter, logger),
		Composer:  compose.NewStage(cfg, composer, logger),
		Finisher:  finish.NewStage(cfg, finisher, policy, logger),
		Publisher: publish.NewStage(coordinator, inspector, logger),
	}, nil
}
