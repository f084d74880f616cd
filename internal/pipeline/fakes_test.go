package pipeline_test

import (
	"context"
	"fmt"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePlatform is an in-memory workspace. Every method records its name in
// calls so tests can assert which operations were made.
type fakePlatform struct {
	mu    sync.Mutex
	calls []string

	datasets []platform.DatasetVersion

	computes       map[string]platform.ComputeTarget
	computeOutcome string
	computeBlock   bool

	environments map[string][]platform.Environment

	runStatus  string
	runMetrics map[string]float64
	submitted  []platform.JobSpec

	models map[string][]platform.ModelRecord

	serviceState string
	deployed     []platform.ServiceSpec

	fail map[string]error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		computes:       map[string]platform.ComputeTarget{},
		computeOutcome: platform.ProvisioningSucceeded,
		environments:   map[string][]platform.Environment{},
		runStatus:      platform.RunCompleted,
		runMetrics:     map[string]float64{"accuracy": 0.92},
		models:         map[string][]platform.ModelRecord{},
		serviceState:   platform.ServiceHealthy,
		fail:           map[string]error{},
	}
}

func (f *fakePlatform) Platform() platform.Platform {
	return platform.Platform{
		Datasets:     (*fakeDatasets)(f),
		Computes:     (*fakeComputes)(f),
		Environments: (*fakeEnvironments)(f),
		Jobs:         (*fakeJobs)(f),
		Models:       (*fakeModels)(f),
		Services:     (*fakeServices)(f),
	}
}

func (f *fakePlatform) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakePlatform) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakePlatform) addModel(name string, accuracy *float64) platform.ModelRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	version := len(f.models[name]) + 1
	record := platform.ModelRecord{
		ID:      fmt.Sprintf("%s:%d", name, version),
		Name:    name,
		Version: version,
		Metrics: map[string]float64{},
	}
	if accuracy != nil {
		record.Metrics["accuracy"] = *accuracy
	}
	f.models[name] = append(f.models[name], record)
	return record
}

type fakeDatasets fakePlatform

func (d *fakeDatasets) Register(ctx context.Context, req platform.DatasetRegistration) (platform.DatasetVersion, error) {
	f := (*fakePlatform)(d)
	if err := f.record("Datasets.Register"); err != nil {
		return platform.DatasetVersion{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.datasets) > 0 && !req.CreateNewVersion {
		return f.datasets[len(f.datasets)-1], nil
	}
	version := platform.DatasetVersion{Name: req.Name, Version: len(f.datasets) + 1, Description: req.Description, URI: req.URI}
	f.datasets = append(f.datasets, version)
	return version, nil
}

func (d *fakeDatasets) Latest(ctx context.Context, name string) (platform.DatasetVersion, error) {
	f := (*fakePlatform)(d)
	if err := f.record("Datasets.Latest"); err != nil {
		return platform.DatasetVersion{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.datasets) == 0 {
		return platform.DatasetVersion{}, &platform.Error{Op: "get dataset", StatusCode: 404}
	}
	return f.datasets[len(f.datasets)-1], nil
}

type fakeComputes fakePlatform

func (c *fakeComputes) Get(ctx context.Context, name string) (platform.ComputeTarget, error) {
	f := (*fakePlatform)(c)
	if err := f.record("Computes.Get"); err != nil {
		return platform.ComputeTarget{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.computes[name]
	if !ok {
		return target, &platform.Error{Op: "get compute " + name, StatusCode: 404}
	}
	return target, nil
}

func (c *fakeComputes) Create(ctx context.Context, spec platform.ComputeSpec) (platform.Operation[platform.ComputeTarget], error) {
	f := (*fakePlatform)(c)
	if err := f.record("Computes.Create"); err != nil {
		return nil, err
	}

	poll := func(ctx context.Context) (platform.ComputeTarget, bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.computeBlock {
			return platform.ComputeTarget{}, false, nil
		}
		target := platform.ComputeTarget{Name: spec.Name, Type: spec.Type, VMSize: spec.VMSize, ProvisioningState: f.computeOutcome}
		if f.computeOutcome != platform.ProvisioningSucceeded {
			return target, false, fmt.Errorf("compute %s: %w", spec.Name, platform.ErrOperationFailed)
		}
		f.computes[spec.Name] = target
		return target, true, nil
	}
	return platform.NewPollingOperation(spec.Name, poll, platform.WaitOptions{Interval: time.Millisecond}), nil
}

type fakeEnvironments fakePlatform

func (e *fakeEnvironments) Register(ctx context.Context, spec platform.EnvironmentSpec) (platform.Environment, error) {
	f := (*fakePlatform)(e)
	if err := f.record("Environments.Register"); err != nil {
		return platform.Environment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	env := platform.Environment{
		Name:        spec.Name,
		Version:     fmt.Sprint(len(f.environments[spec.Name]) + 1),
		PipPackages: spec.PipPackages,
		CondaFile:   spec.CondaFile,
	}
	f.environments[spec.Name] = append(f.environments[spec.Name], env)
	return env, nil
}

func (e *fakeEnvironments) Get(ctx context.Context, name, version string) (platform.Environment, error) {
	f := (*fakePlatform)(e)
	if err := f.record("Environments.Get"); err != nil {
		return platform.Environment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, env := range f.environments[name] {
		if env.Version == version {
			return env, nil
		}
	}
	return platform.Environment{}, &platform.Error{Op: "get environment " + name, StatusCode: 404}
}

type fakeJobs fakePlatform

func (j *fakeJobs) Submit(ctx context.Context, spec platform.JobSpec) (platform.Operation[platform.RunDetails], error) {
	f := (*fakePlatform)(j)
	if err := f.record("Jobs.Submit"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, spec)
	f.mu.Unlock()

	run := f.runDetails(spec.Experiment, "run-1")
	return platform.NewCompletedOperation(run.RunID, run), nil
}

func (j *fakeJobs) Get(ctx context.Context, experiment, runID string) (platform.RunDetails, error) {
	f := (*fakePlatform)(j)
	if err := f.record("Jobs.Get"); err != nil {
		return platform.RunDetails{}, err
	}
	return f.runDetails(experiment, runID), nil
}

func (f *fakePlatform) runDetails(experiment, runID string) platform.RunDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runErr *platform.RunError
	if f.runStatus != platform.RunCompleted {
		runErr = &platform.RunError{Code: "UserError", Message: "train.py exited with code 1"}
	}
	return platform.RunDetails{
		RunID:          runID,
		Experiment:     experiment,
		Target:         "cpu-cluster",
		Status:         f.runStatus,
		StartTimeUTC:   "2024-05-01T10:00:00Z",
		EndTimeUTC:     "2024-05-01T10:20:00Z",
		Properties:     map[string]string{"azureml.runsource": "experiment"},
		RunDefinition:  []byte(`{"script":"train.py"}`),
		LogFiles:       map[string]string{"azureml-logs/70_driver_log.txt": "https://logs/1"},
		SubmittedBy:    "pipeline",
		Error:          runErr,
		InputDatasets:  []byte(`[{"dataset":{"id":"ds-1"}}]`),
		OutputDatasets: []byte(`[]`),
	}
}

func (j *fakeJobs) Metrics(ctx context.Context, experiment, runID string) (map[string]float64, error) {
	f := (*fakePlatform)(j)
	if err := f.record("Jobs.Metrics"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runMetrics, nil
}

type fakeModels fakePlatform

func (m *fakeModels) Latest(ctx context.Context, name string) (platform.ModelRecord, error) {
	f := (*fakePlatform)(m)
	if err := f.record("Models.Latest"); err != nil {
		return platform.ModelRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.models[name]
	if len(versions) == 0 {
		return platform.ModelRecord{}, &platform.Error{Op: "get latest model " + name, StatusCode: 404}
	}
	return versions[len(versions)-1], nil
}

func (m *fakeModels) Get(ctx context.Context, name string, version int) (platform.ModelRecord, error) {
	f := (*fakePlatform)(m)
	if err := f.record("Models.Get"); err != nil {
		return platform.ModelRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.models[name]
	if version < 1 || version > len(versions) {
		return platform.ModelRecord{}, &platform.Error{Op: "get model " + name, StatusCode: 404}
	}
	return versions[version-1], nil
}

func (m *fakeModels) Register(ctx context.Context, reg platform.ModelRegistration) (platform.ModelRecord, error) {
	f := (*fakePlatform)(m)
	if err := f.record("Models.Register"); err != nil {
		return platform.ModelRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	version := len(f.models[reg.Name]) + 1
	record := platform.ModelRecord{
		ID:          fmt.Sprintf("%s:%d", reg.Name, version),
		Name:        reg.Name,
		Version:     version,
		Description: reg.Description,
		Path:        reg.Path,
		RunID:       reg.RunID,
		Tags:        reg.Tags,
		Metrics:     reg.Metrics,
	}
	f.models[reg.Name] = append(f.models[reg.Name], record)
	return record, nil
}

type fakeServices fakePlatform

func (s *fakeServices) Deploy(ctx context.Context, spec platform.ServiceSpec) (platform.Operation[platform.Service], error) {
	f := (*fakePlatform)(s)
	if err := f.record("Services.Deploy"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.deployed = append(f.deployed, spec)
	state := f.serviceState
	f.mu.Unlock()

	poll := func(ctx context.Context) (platform.Service, bool, error) {
		svc := platform.Service{
			Name:        spec.Name,
			ScoringURI:  "http://" + spec.Name + ".azurecontainer.io/score",
			State:       state,
			ComputeType: spec.Deployment.ComputeType,
			Tags:        spec.Deployment.Tags,
			Description: spec.Deployment.Description,
			Models:      spec.Models,
			Environment: spec.Inference.Environment,
			CPUCores:    spec.Deployment.CPUCores,
			MemoryGB:    spec.Deployment.MemoryGB,
			CreatedTime: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		}
		if state != platform.ServiceHealthy {
			return svc, false, fmt.Errorf("service %s ended %s: %w", spec.Name, state, platform.ErrOperationFailed)
		}
		return svc, true, nil
	}
	return platform.NewPollingOperation(spec.Name, poll, platform.WaitOptions{Interval: time.Millisecond}), nil
}

func (s *fakeServices) Get(ctx context.Context, name string) (platform.Service, error) {
	f := (*fakePlatform)(s)
	if err := f.record("Services.Get"); err != nil {
		return platform.Service{}, err
	}
	return platform.Service{}, &platform.Error{Op: "get service " + name, StatusCode: 404}
}

func testConfig(t *testing.T) *config.PipelineConfig {
	t.Helper()
	root := t.TempDir()

	scripts := filepath.Join(root, "scripts")
	require.NoError(t, os.MkdirAll(scripts, os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "train.py"), []byte("print('train')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "score.py"), []byte("def run(raw): pass"), 0o644))

	cfg, err := config.LoadFromMap(map[string]string{
		"SUBSCRIPTION_ID":           "sub-1",
		"RESOURCE_GROUP":            "rg",
		"WORKSPACE_NAME":            "ws",
		"PLATFORM_ENDPOINT":         "http://localhost:9000",
		"DATASET_NAME":              "mnist",
		"DATASET_DESCRIPTION":       "mnist digits",
		"DATA_FOLDER":               filepath.Join(root, "data"),
		"AML_COMPUTE_CLUSTER_NAME":  "cpu-cluster",
		"AML_ENV_NAME":              "mnist-env",
		"EXPERIMENT_NAME":           "mnist-exp",
		"MODEL_NAME":                "mnist-model",
		"MODEL_DESCRIPTION":         "sklearn logistic regression",
		"ROOT_DIR":                  root,
		"TEMP_STATE_DIRECTORY":      filepath.Join(root, "state"),
		"COMPUTE_PROVISION_TIMEOUT": "1s",
	})
	require.NoError(t, err)
	return cfg
}
