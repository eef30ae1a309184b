// Package pipeline orchestrates one normalization run: download, load,
// normalize, save, upload, document. Strictly linear, one attempt per
// step; the first failure halts the run and is reported in the result.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/logger"
	"fmworker/internal/normalizer"
	"fmworker/internal/storage"
)

// Pipeline step names, used in logs and failure results.
const (
	StepDownload  = "download"
	StepLoad      = "load"
	StepNormalize = "normalize"
	StepSave      = "save"
	StepUpload    = "upload"
	StepDocument  = "document"
)

// Run statuses.
const (
	StatusDone  = "done"
	StatusError = "error"
)

// Result is the immutable record returned for each run.
type Result struct {
	Status         string    `json:"status"`
	InputPath      string    `json:"input_path"`
	OutputPath     string    `json:"output_path"`
	NormalizedFile string    `json:"normalized_file,omitempty"`
	RunID          string    `json:"run_id"`
	Timestamp      time.Time `json:"timestamp"`
	FailedStep     string    `json:"failed_step,omitempty"`
	Error          string    `json:"error,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`

	cause error
}

// Cause returns the underlying error of a failed run, for classification
// with errors.Is. Nil for successful runs.
func (r *Result) Cause() error {
	return r.cause
}

// MarkFailed records a step failure on the result. After the result is
// returned to the caller it is never mutated again.
func (r *Result) MarkFailed(step string, err error) {
	r.Status = StatusError
	r.FailedStep = step
	r.Error = fmt.Sprintf("%s: %v", step, err)
	r.cause = err
}

// Orchestrator composes the gateway, the archive codec and the normalizer
// into one run. Construct one per invocation with an explicit gateway;
// there is no module-level client.
type Orchestrator struct {
	gateway storage.Gateway
	norm    *normalizer.Normalizer
	cfg     config.StorageConfig
	logger  *logger.Logger
	now     func() time.Time
}

// New creates an orchestrator.
func New(gw storage.Gateway, cfg *config.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		gateway: gw,
		norm: normalizer.New(
			cfg.Worker.Normalizer.ImageKeyPatterns,
			cfg.Worker.Normalizer.Scale,
		),
		cfg:    cfg.Worker.Storage,
		logger: log,
		now:    time.Now,
	}
}

// Run executes the pipeline for one input archive. When outputPath is
// empty it is derived from the input path. Failures never surface as
// errors; they are folded into the result with the failing step's name.
// Prior uploads are not rolled back.
func (o *Orchestrator) Run(ctx context.Context, inputPath, outputPath string) *Result {
	runID := uuid.NewString()
	log := o.logger.With("run_id", runID, "input", inputPath)

	if outputPath == "" {
		outputPath = DeriveOutputDir(inputPath, o.cfg.NormalizedSuffix)
	}

	inputName := storage.Base(inputPath)
	normalizedName := DeriveNormalizedName(inputName, o.cfg.NormalizedSuffix)

	result := &Result{
		Status:         StatusDone,
		InputPath:      inputPath,
		OutputPath:     outputPath,
		NormalizedFile: storage.Join(outputPath, normalizedName),
		RunID:          runID,
		Timestamp:      o.now().UTC(),
	}

	workdir, err := os.MkdirTemp("", "fmworker-run-")
	if err != nil {
		return o.fail(result, log, StepDownload, inputPath, fmt.Errorf("failed to create workdir: %w", err))
	}
	defer os.RemoveAll(workdir)

	// download
	localInput := filepath.Join(workdir, inputName)
	if err := o.gateway.Download(ctx, inputPath, localInput); err != nil {
		return o.fail(result, log, StepDownload, inputPath, err)
	}

	log.Info("downloaded input archive", "local", localInput)

	// load
	ds, err := archive.Load(localInput)
	if err != nil {
		return o.fail(result, log, StepLoad, localInput, err)
	}

	log.Info("loaded dataset", "arrays", ds.Len())

	// normalize
	normalized, warnings, err := o.norm.Normalize(ds)
	if err != nil {
		return o.fail(result, log, StepNormalize, inputPath, err)
	}

	for _, w := range warnings {
		log.Warn("normalization warning", "key", w.Key, "detail", w.Message)
		result.Warnings = append(result.Warnings, w.String())
	}

	// save
	localOutput := filepath.Join(workdir, normalizedName)
	if err := archive.Save(localOutput, normalized); err != nil {
		return o.fail(result, log, StepSave, localOutput, err)
	}

	// upload. On failure the local normalized file remains in the workdir
	// until cleanup; nothing already uploaded is rolled back.
	if err := o.gateway.Upload(ctx, localOutput, result.NormalizedFile); err != nil {
		return o.fail(result, log, StepUpload, result.NormalizedFile, err)
	}

	log.Info("uploaded normalized archive", "remote", result.NormalizedFile)

	// document
	if err := o.document(ctx, workdir, normalized, inputPath, outputPath, normalizedName, result.Timestamp); err != nil {
		return o.fail(result, log, StepDocument, outputPath, err)
	}

	log.Info("pipeline done", "output", result.NormalizedFile)

	return result
}

// document writes the generated README to the output location and copies
// the class-name manifest when the input location has one. A missing
// manifest never fails the run.
func (o *Orchestrator) document(ctx context.Context, workdir string, ds *dataset.Dataset, inputPath, outputPath, normalizedName string, ts time.Time) error {
	readme := renderReadme(ds, o.norm, inputPath, normalizedName, ts)

	localReadme := filepath.Join(workdir, "README.md")
	if err := os.WriteFile(localReadme, []byte(readme), 0644); err != nil {
		return fmt.Errorf("failed to write README: %w", err)
	}

	if err := o.gateway.Upload(ctx, localReadme, storage.Join(outputPath, "README.md")); err != nil {
		return fmt.Errorf("failed to upload README: %w", err)
	}

	return o.copyClassNames(ctx, workdir, inputPath, outputPath)
}

func (o *Orchestrator) copyClassNames(ctx context.Context, workdir, inputPath, outputPath string) error {
	manifest := o.cfg.ClassNamesFile
	if manifest == "" {
		return nil
	}

	localManifest := filepath.Join(workdir, manifest)
	remoteManifest := storage.Join(storage.Dir(inputPath), manifest)

	err := o.gateway.Download(ctx, remoteManifest, localManifest)
	if err != nil {
		if storage.IsNotFound(err) {
			o.logger.Debug("no class-name manifest at input location", "path", remoteManifest)
			return nil
		}

		return fmt.Errorf("failed to fetch class-name manifest: %w", err)
	}

	return o.gateway.Upload(ctx, localManifest, storage.Join(outputPath, manifest))
}

func (o *Orchestrator) fail(result *Result, log *logger.Logger, step, path string, err error) *Result {
	log.Error("pipeline step failed", "step", step, "path", path, "error", err)

	result.MarkFailed(step, err)

	return result
}
