package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// PipelineConfig is resolved once at process start and passed by pointer into
// every stage. Stages must treat it as read-only.
type PipelineConfig struct {
	SubscriptionID string `env:"SUBSCRIPTION_ID,notEmpty,required"`
	ResourceGroup  string `env:"RESOURCE_GROUP,notEmpty,required"`
	WorkspaceName  string `env:"WORKSPACE_NAME,notEmpty,required"`

	PlatformEndpoint string        `env:"PLATFORM_ENDPOINT,notEmpty,required"`
	PlatformToken    string        `env:"PLATFORM_TOKEN"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`

	DatasetName         string `env:"DATASET_NAME,notEmpty,required"`
	DatasetDescription  string `env:"DATASET_DESCRIPTION"`
	DatasetNewVersion   bool   `env:"DATASET_NEW_VERSION" envDefault:"false"`
	DatasetSourceBucket string `env:"DATASET_SOURCE_BUCKET" envDefault:"open-datasets"`
	DatasetSourcePrefix string `env:"DATASET_SOURCE_PREFIX" envDefault:"mnist"`
	DataFolder          string `env:"DATA_FOLDER" envDefault:"data"`

	ComputeName             string        `env:"AML_COMPUTE_CLUSTER_NAME,notEmpty,required"`
	ComputeMinNodes         int           `env:"AML_COMPUTE_CLUSTER_MIN_NODES" envDefault:"0"`
	ComputeMaxNodes         int           `env:"AML_COMPUTE_CLUSTER_MAX_NODES" envDefault:"4"`
	ComputeSKU              string        `env:"AML_COMPUTE_CLUSTER_SKU" envDefault:"STANDARD_D2_V2"`
	ComputeProvisionTimeout time.Duration `env:"COMPUTE_PROVISION_TIMEOUT" envDefault:"20m"`

	EnvironmentName        string   `env:"AML_ENV_NAME,notEmpty,required"`
	EnvironmentVersion     string   `env:"AML_ENV_VERSION" envDefault:"1"`
	EnvironmentPipPackages []string `env:"AML_ENV_PIP_PACKAGES" envSeparator:";" envDefault:"azureml-dataset-runtime[pandas,fuse];azureml-defaults;scikit-learn;tensorflow"`

	TrainScriptName string  `env:"TRAIN_SCRIPT_NAME" envDefault:"train.py"`
	Regularization  float64 `env:"REGULARIZATION" envDefault:"0.01"`

	ExperimentName   string `env:"EXPERIMENT_NAME,notEmpty,required"`
	ModelName        string `env:"MODEL_NAME,notEmpty,required"`
	ModelDescription string `env:"MODEL_DESCRIPTION"`

	DeployCPUCores     float64 `env:"DEPLOY_CPU_CORES" envDefault:"1"`
	DeployMemoryGB     float64 `env:"DEPLOY_MEMORY_GB" envDefault:"1"`
	DeployModelVersion int     `env:"DEPLOY_MODEL_VERSION" envDefault:"0"`
	DeployForce        bool    `env:"DEPLOY_FORCE" envDefault:"false"`

	RootDir  string `env:"ROOT_DIR" envDefault:"."`
	StateDir string `env:"TEMP_STATE_DIRECTORY,notEmpty,required"`

	ObjectStore         string `env:"OBJECT_STORE" envDefault:"local"`
	LocalObjectStoreDir string `env:"LOCAL_OBJECT_STORE_DIR" envDefault:"./.objects"`
	S3EndpointURL       string `env:"S3_ENDPOINT_URL"`
	S3Region            string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3AccessKeyID       string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	SnapshotBucket      string `env:"SNAPSHOT_BUCKET" envDefault:"pipeline-snapshots"`
	StateBucket         string `env:"STATE_BUCKET"`
	StatePrefix         string `env:"STATE_PREFIX" envDefault:"state"`

	LedgerDSN     string `env:"LEDGER_DSN"`
	EventsAMQPURL string `env:"EVENTS_AMQP_URL"`
	StatusPort    int    `env:"STATUS_PORT" envDefault:"8090"`
}

const (
	ObjectStoreLocal = "local"
	ObjectStoreS3    = "s3"
)

func Load() (*PipelineConfig, error) {
	return LoadFromMap(nil)
}

// LoadFromMap parses the config from the given variables instead of the
// process environment when vars is non-nil.
func LoadFromMap(vars map[string]string) (*PipelineConfig, error) {
	var cfg PipelineConfig
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("error parsing pipeline config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *PipelineConfig) validate() error {
	if cfg.ComputeMinNodes < 0 || cfg.ComputeMaxNodes < cfg.ComputeMinNodes {
		return fmt.Errorf("invalid compute node range: min=%d max=%d", cfg.ComputeMinNodes, cfg.ComputeMaxNodes)
	}
	if cfg.ComputeMaxNodes == 0 {
		return fmt.Errorf("AML_COMPUTE_CLUSTER_MAX_NODES must be greater than 0")
	}
	if cfg.DeployCPUCores <= 0 || cfg.DeployMemoryGB <= 0 {
		return fmt.Errorf("deployment resources must be positive: cpu=%v memory=%v", cfg.DeployCPUCores, cfg.DeployMemoryGB)
	}
	if cfg.DeployModelVersion < 0 {
		return fmt.Errorf("DEPLOY_MODEL_VERSION must not be negative")
	}
	switch cfg.ObjectStore {
	case ObjectStoreLocal, ObjectStoreS3:
	default:
		return fmt.Errorf("unsupported OBJECT_STORE %q", cfg.ObjectStore)
	}
	return cfg.CheckDataFolder()
}

func (cfg *PipelineConfig) ScriptFolder() string {
	return filepath.Join(cfg.RootDir, "scripts")
}

func (cfg *PipelineConfig) ScoreScriptPath() string {
	return filepath.Join(cfg.ScriptFolder(), "score.py")
}

// DataFolderPath resolves DATA_FOLDER against the working directory.
func (cfg *PipelineConfig) DataFolderPath() (string, error) {
	path, err := filepath.Abs(cfg.DataFolder)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data folder %s: %w", cfg.DataFolder, err)
	}
	return path, nil
}

// CheckDataFolder rejects a DATA_FOLDER that contains the script folder or the
// state directory, since the dataset is written over it.
func (cfg *PipelineConfig) CheckDataFolder() error {
	data, err := cfg.DataFolderPath()
	if err != nil {
		return err
	}

	for name, dir := range map[string]string{"script folder": cfg.ScriptFolder(), "TEMP_STATE_DIRECTORY": cfg.StateDir} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s %s: %w", name, dir, err)
		}
		if isWithin(data, abs) {
			return fmt.Errorf("DATA_FOLDER %s must not contain the %s %s", data, name, abs)
		}
	}
	return nil
}

func isWithin(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
