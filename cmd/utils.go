package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/ledger"
	"mlops-pipeline/internal/messaging"
	"mlops-pipeline/internal/pipeline"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/platform/rest"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile parses the command line, so any other flags must be registered
// before it is called.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func NewObjectStore(cfg *config.PipelineConfig) (storage.ObjectStore, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreS3:
		return storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return storage.NewLocalObjectStore(cfg.LocalObjectStoreDir)
	}
}

// NewStateStore returns the local state directory, mirrored into STATE_BUCKET
// when one is configured.
func NewStateStore(ctx context.Context, cfg *config.PipelineConfig, objects storage.ObjectStore) (state.Store, error) {
	local := state.NewLocalStore(cfg.StateDir)
	if cfg.StateBucket == "" {
		return local, nil
	}

	if err := objects.CreateBucket(ctx, cfg.StateBucket); err != nil {
		return nil, fmt.Errorf("error creating state bucket %s: %w", cfg.StateBucket, err)
	}

	return state.NewMirroredStore(local, state.NewBucketStore(objects, cfg.StateBucket, cfg.StatePrefix)), nil
}

func NewPlatform(cfg *config.PipelineConfig) platform.Platform {
	return rest.NewClient(rest.Config{
		Endpoint: cfg.PlatformEndpoint,
		Token:    cfg.PlatformToken,
		Workspace: platform.Workspace{
			SubscriptionID: cfg.SubscriptionID,
			ResourceGroup:  cfg.ResourceGroup,
			Name:           cfg.WorkspaceName,
		},
		PollInterval: cfg.PollInterval,
		ShowProgress: true,
	}).Platform()
}

// NewLedger returns nil when no LEDGER_DSN is configured.
func NewLedger(dsn string) (*ledger.Ledger, error) {
	if dsn == "" {
		return nil, nil
	}
	return ledger.Open(dsn)
}

func NewPublisher(amqpURL string) (messaging.Publisher, error) {
	if amqpURL == "" {
		return messaging.DiscardPublisher{}, nil
	}
	return messaging.NewRabbitMQPublisher(amqpURL)
}

// Pipeline holds everything a stage process needs.
type Pipeline struct {
	Config    *config.PipelineConfig
	Platform  platform.Platform
	Objects   storage.ObjectStore
	State     state.Store
	Runner    *pipeline.Runner
	closeFunc []func()
}

func (p *Pipeline) Close() {
	for i := len(p.closeFunc) - 1; i >= 0; i-- {
		p.closeFunc[i]()
	}
}

// Stages builds the stages in order starting from the named stage.
func (p *Pipeline) Stages(from string) ([]pipeline.Stage, error) {
	return pipeline.NewStages(from, p.Config, p.Platform, p.Objects, p.State)
}

// InitPipeline loads the config and wires the stores, platform client, ledger
// and event publisher. Any failure here is fatal.
func InitPipeline(ctx context.Context) *Pipeline {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	objects, err := NewObjectStore(cfg)
	if err != nil {
		log.Fatalf("error creating object store: %v", err)
	}

	store, err := NewStateStore(ctx, cfg, objects)
	if err != nil {
		log.Fatalf("error creating state store: %v", err)
	}

	p := &Pipeline{
		Config:   cfg,
		Platform: NewPlatform(cfg),
		Objects:  objects,
		State:    store,
	}

	runLedger, err := NewLedger(cfg.LedgerDSN)
	if err != nil {
		log.Fatalf("error opening run ledger: %v", err)
	}
	if runLedger != nil {
		p.closeFunc = append(p.closeFunc, func() {
			if err := runLedger.Close(); err != nil {
				slog.Warn("error closing run ledger", "error", err)
			}
		})
	}

	publisher, err := NewPublisher(cfg.EventsAMQPURL)
	if err != nil {
		log.Fatalf("error connecting to event broker: %v", err)
	}
	p.closeFunc = append(p.closeFunc, publisher.Close)

	p.Runner = pipeline.NewRunner(runLedger, publisher)

	slog.Info("pipeline initialized", "pipeline_run_id", p.Runner.PipelineRunId(), "workspace", cfg.WorkspaceName, "state_dir", cfg.StateDir, "object_store", cfg.ObjectStore)

	return p
}

// RunStage is the body shared by the single stage binaries.
func RunStage(name string) {
	log.Printf("Starting %s stage...", name)

	LoadEnvFile()

	// stages are not cancellable; a blocking wait runs until the platform
	// reports a terminal state
	ctx := context.Background()

	p := InitPipeline(ctx)

	stage, err := pipeline.NewStage(name, p.Config, p.Platform, p.Objects, p.State)
	if err != nil {
		p.Close()
		log.Fatalf("error creating stage: %v", err)
	}

	_, err = p.Runner.Run(ctx, stage)
	p.Close()
	ExitOnError(err)
}

// ExitCode maps a stage error to the process exit code. A missing input
// artifact is a soft exit so that later stages of a broken run do not crash.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, state.ErrConfigMissing) {
		return 0
	}
	return 1
}

func ExitOnError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, state.ErrConfigMissing):
		slog.Warn("required input artifact is missing, nothing to do", "error", err)
	default:
		slog.Error("stage failed", "error", err)
	}
	os.Exit(ExitCode(err))
}
