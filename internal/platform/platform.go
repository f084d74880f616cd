package platform

import (
	"context"
	"encoding/json"
	"time"
)

type Workspace struct {
	SubscriptionID string
	ResourceGroup  string
	Name           string
}

type DatasetRegistration struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	URI              string `json:"uri"`
	CreateNewVersion bool   `json:"createNewVersion"`
}

type DatasetVersion struct {
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Description string    `json:"description"`
	URI         string    `json:"uri"`
	CreatedTime time.Time `json:"createdTime"`
}

type Datasets interface {
	// Register creates a new dataset version, or aliases the latest version
	// when CreateNewVersion is false and the dataset already exists.
	Register(ctx context.Context, req DatasetRegistration) (DatasetVersion, error)

	Latest(ctx context.Context, name string) (DatasetVersion, error)
}

const ComputeTypeAml = "AmlCompute"

const (
	ProvisioningCreating  = "Creating"
	ProvisioningSucceeded = "Succeeded"
	ProvisioningFailed    = "Failed"
	ProvisioningCanceled  = "Canceled"
)

type ComputeSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	VMSize   string `json:"vmSize"`
	MinNodes int    `json:"minNodes"`
	MaxNodes int    `json:"maxNodes"`
}

type ComputeTarget struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	VMSize            string `json:"vmSize"`
	MinNodes          int    `json:"minNodes"`
	MaxNodes          int    `json:"maxNodes"`
	CurrentNodeCount  int    `json:"currentNodeCount"`
	ProvisioningState string `json:"provisioningState"`
	ProvisioningError string `json:"provisioningError,omitempty"`
}

type Computes interface {
	// Get returns an error wrapping ErrNotFound when no pool has this name.
	Get(ctx context.Context, name string) (ComputeTarget, error)

	Create(ctx context.Context, spec ComputeSpec) (Operation[ComputeTarget], error)
}

type EnvironmentSpec struct {
	Name        string   `json:"name"`
	PipPackages []string `json:"pipPackages"`
	CondaFile   string   `json:"condaFile"`
}

type EnvironmentRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Environment struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	PipPackages []string  `json:"pipPackages"`
	CondaFile   string    `json:"condaFile"`
	CreatedTime time.Time `json:"createdTime"`
}

func (e Environment) Ref() EnvironmentRef {
	return EnvironmentRef{Name: e.Name, Version: e.Version}
}

type Environments interface {
	Register(ctx context.Context, spec EnvironmentSpec) (Environment, error)

	Get(ctx context.Context, name, version string) (Environment, error)
}

const (
	RunQueued     = "Queued"
	RunPreparing  = "Preparing"
	RunRunning    = "Running"
	RunFinalizing = "Finalizing"
	RunCompleted  = "Completed"
	RunFailed     = "Failed"
	RunCanceled   = "Canceled"
)

func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunCompleted, RunFailed, RunCanceled:
		return true
	}
	return false
}

type DatasetInput struct {
	Name          string `json:"name"`
	Version       int    `json:"version"`
	Mode          string `json:"mode"`
	PathOnCompute string `json:"pathOnCompute"`
}

type JobSpec struct {
	Experiment    string         `json:"experiment"`
	ScriptName    string         `json:"scriptName"`
	Arguments     []string       `json:"arguments"`
	ComputeTarget string         `json:"computeTarget"`
	Environment   EnvironmentRef `json:"environment"`
	Inputs        []DatasetInput `json:"inputs"`
	SnapshotURI   string         `json:"snapshotUri"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunDetails is the platform's full record for a run. The dataset bindings
// are kept raw; they are not part of any persisted artifact.
type RunDetails struct {
	RunID          string            `json:"runId"`
	Experiment     string            `json:"experiment"`
	Target         string            `json:"target"`
	Status         string            `json:"status"`
	StartTimeUTC   string            `json:"startTimeUtc,omitempty"`
	EndTimeUTC     string            `json:"endTimeUtc,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	RunDefinition  json.RawMessage   `json:"runDefinition,omitempty"`
	LogFiles       map[string]string `json:"logFiles,omitempty"`
	SubmittedBy    string            `json:"submittedBy,omitempty"`
	Error          *RunError         `json:"error,omitempty"`
	InputDatasets  json.RawMessage   `json:"inputDatasets,omitempty"`
	OutputDatasets json.RawMessage   `json:"outputDatasets,omitempty"`
}

type Jobs interface {
	// Submit starts a run. The returned operation completes when the run
	// reaches a terminal status, successful or not.
	Submit(ctx context.Context, spec JobSpec) (Operation[RunDetails], error)

	Get(ctx context.Context, experiment, runID string) (RunDetails, error)

	Metrics(ctx context.Context, experiment, runID string) (map[string]float64, error)
}

const AccuracyMetric = "accuracy"

type ModelRegistration struct {
	Name        string             `json:"name"`
	Path        string             `json:"path"`
	RunID       string             `json:"runId"`
	Description string             `json:"description"`
	Tags        map[string]string  `json:"tags"`
	Metrics     map[string]float64 `json:"metrics"`
}

type ModelRecord struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Version     int                `json:"version"`
	Description string             `json:"description"`
	Path        string             `json:"path"`
	RunID       string             `json:"runId"`
	Tags        map[string]string  `json:"tags"`
	Metrics     map[string]float64 `json:"metrics"`
	CreatedTime time.Time          `json:"createdTime"`
}

func (m ModelRecord) Accuracy() (float64, bool) {
	acc, ok := m.Metrics[AccuracyMetric]
	return acc, ok
}

type ModelRef struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type Models interface {
	// Latest returns an error wrapping ErrNotFound when no version exists.
	Latest(ctx context.Context, name string) (ModelRecord, error)

	Get(ctx context.Context, name string, version int) (ModelRecord, error)

	Register(ctx context.Context, reg ModelRegistration) (ModelRecord, error)
}

const ComputeTypeACI = "ACI"

const (
	ServiceTransitioning = "Transitioning"
	ServiceHealthy       = "Healthy"
	ServiceUnhealthy     = "Unhealthy"
	ServiceFailed        = "Failed"
)

type InferenceConfig struct {
	EntryScript        string         `json:"entryScript"`
	EntryScriptContent string         `json:"entryScriptContent"`
	Environment        EnvironmentRef `json:"environment"`
}

type DeploymentConfig struct {
	ComputeType string            `json:"computeType"`
	CPUCores    float64           `json:"cpuCores"`
	MemoryGB    float64           `json:"memoryGb"`
	Tags        map[string]string `json:"tags"`
	Description string            `json:"description"`
}

type ServiceSpec struct {
	Name       string           `json:"name"`
	Models     []ModelRef       `json:"models"`
	Inference  InferenceConfig  `json:"inference"`
	Deployment DeploymentConfig `json:"deployment"`
}

type Service struct {
	Name        string            `json:"name"`
	ScoringURI  string            `json:"scoringUri"`
	State       string            `json:"state"`
	ComputeType string            `json:"computeType"`
	Tags        map[string]string `json:"tags"`
	Description string            `json:"description"`
	Models      []ModelRef        `json:"models"`
	Environment EnvironmentRef    `json:"environment"`
	CPUCores    float64           `json:"cpuCores"`
	MemoryGB    float64           `json:"memoryGb"`
	CreatedTime time.Time         `json:"createdTime"`
	Error       string            `json:"error,omitempty"`
}

type Services interface {
	// Deploy submits the service. The returned operation completes once the
	// service reports Healthy and fails if it ends Failed or Unhealthy.
	Deploy(ctx context.Context, spec ServiceSpec) (Operation[Service], error)

	Get(ctx context.Context, name string) (Service, error)
}

// Platform groups the services of one workspace.
type Platform struct {
	Datasets     Datasets
	Computes     Computes
	Environments Environments
	Jobs         Jobs
	Models       Models
	Services     Services
}
