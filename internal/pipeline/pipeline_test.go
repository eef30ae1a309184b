package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/dataset"
	"fmworker/internal/logger"
	"fmworker/internal/storage"
	"fmworker/pkg/metadata"
)

// writeInput lays out a raw input location on disk: raw/ds.npz plus an
// optional class-name manifest.
func writeInput(t *testing.T, root string, withManifest bool) string {
	t.Helper()

	rawDir := filepath.Join(root, "raw")
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	ds := dataset.New()

	images, err := dataset.NewUint8([]int{2, 2, 2}, []uint8{0, 10, 20, 30, 40, 50, 60, 255})
	if err != nil {
		t.Fatalf("NewUint8 failed: %v", err)
	}

	labels, err := dataset.NewUint8([]int{2}, []uint8{1, 2})
	if err != nil {
		t.Fatalf("NewUint8 failed: %v", err)
	}

	ds.Set("X_train", images)
	ds.Set("y_train", labels)

	inputPath := filepath.Join(rawDir, "ds.npz")
	if err := archive.Save(inputPath, ds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if withManifest {
		if err := dataset.SaveClassNames(filepath.Join(rawDir, dataset.ClassNamesFile), []string{"a", "b", "c"}); err != nil {
			t.Fatalf("SaveClassNames failed: %v", err)
		}
	}

	return inputPath
}

func newOrchestrator() *Orchestrator {
	return New(storage.NewLocal(), config.Default(), logger.NewNop())
}

func TestRun_Done(t *testing.T) {
	root := t.TempDir()
	inputPath := writeInput(t, root, true)

	result := newOrchestrator().Run(context.Background(), inputPath, "")

	if result.Status != StatusDone {
		t.Fatalf("status = %s (%s), want done", result.Status, result.Error)
	}

	if result.RunID == "" {
		t.Error("missing run ID")
	}

	wantDir := filepath.Join(root, "raw_normalized")
	if result.OutputPath != wantDir {
		t.Errorf("output path = %s, want %s", result.OutputPath, wantDir)
	}

	wantFile := filepath.Join(wantDir, "ds_normalized.npz")
	if result.NormalizedFile != wantFile {
		t.Errorf("normalized file = %s, want %s", result.NormalizedFile, wantFile)
	}

	// The normalized archive holds exactly the input keys, X_* as float32.
	out, err := archive.Load(wantFile)
	if err != nil {
		t.Fatalf("Load of normalized archive failed: %v", err)
	}

	keys := out.Keys()
	if len(keys) != 2 || keys[0] != "X_train" || keys[1] != "y_train" {
		t.Fatalf("normalized keys = %v", keys)
	}

	if out.Get("X_train").DType != dataset.Float32 {
		t.Errorf("X_train dtype = %s, want float32", out.Get("X_train").DType)
	}

	if out.Get("y_train").DType != dataset.Uint8 {
		t.Errorf("y_train dtype = %s, want uint8", out.Get("y_train").DType)
	}

	// README written and provenance-signed.
	readme, err := os.ReadFile(filepath.Join(wantDir, "README.md"))
	if err != nil {
		t.Fatalf("README missing: %v", err)
	}

	if ok, err := metadata.Verify(string(readme)); !ok {
		t.Errorf("README provenance invalid: %v", err)
	}

	if !strings.Contains(string(readme), inputPath) {
		t.Error("README does not mention the source path")
	}

	// Manifest copied verbatim.
	manifest, err := os.ReadFile(filepath.Join(wantDir, dataset.ClassNamesFile))
	if err != nil {
		t.Fatalf("class-name manifest missing: %v", err)
	}

	original, _ := os.ReadFile(filepath.Join(root, "raw", dataset.ClassNamesFile))
	if !bytes.Equal(manifest, original) {
		t.Error("manifest changed during copy")
	}
}

func TestRun_MissingManifestTolerated(t *testing.T) {
	root := t.TempDir()
	inputPath := writeInput(t, root, false)

	result := newOrchestrator().Run(context.Background(), inputPath, "")

	if result.Status != StatusDone {
		t.Fatalf("status = %s (%s), want done", result.Status, result.Error)
	}

	if _, err := os.Stat(filepath.Join(root, "raw_normalized", dataset.ClassNamesFile)); !os.IsNotExist(err) {
		t.Error("manifest appeared in output despite missing input manifest")
	}
}

func TestRun_Deterministic(t *testing.T) {
	root := t.TempDir()
	inputPath := writeInput(t, root, false)
	orch := newOrchestrator()

	first := orch.Run(context.Background(), inputPath, filepath.Join(root, "out1"))
	second := orch.Run(context.Background(), inputPath, filepath.Join(root, "out2"))

	if first.Status != StatusDone || second.Status != StatusDone {
		t.Fatalf("runs failed: %s / %s", first.Error, second.Error)
	}

	a, err := os.ReadFile(first.NormalizedFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	b, err := os.ReadFile(second.NormalizedFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if !bytes.Equal(a, b) {
		t.Error("two runs over the same input produced different archives")
	}
}

func TestRun_MissingInput(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "raw", "absent.npz")

	result := newOrchestrator().Run(context.Background(), inputPath, "")

	if result.Status != StatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}

	if result.FailedStep != StepDownload {
		t.Errorf("failed step = %s, want download", result.FailedStep)
	}

	if !storage.IsNotFound(result.Cause()) {
		t.Errorf("cause = %v, want not-found class", result.Cause())
	}

	// No upload happened.
	if _, err := os.Stat(filepath.Join(root, "raw_normalized")); !os.IsNotExist(err) {
		t.Error("output location exists despite failed download")
	}
}

func TestRun_CorruptInput(t *testing.T) {
	root := t.TempDir()

	rawDir := filepath.Join(root, "raw")
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	inputPath := filepath.Join(rawDir, "bad.npz")
	if err := os.WriteFile(inputPath, []byte("junk"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result := newOrchestrator().Run(context.Background(), inputPath, "")

	if result.Status != StatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}

	if result.FailedStep != StepLoad {
		t.Errorf("failed step = %s, want load", result.FailedStep)
	}
}
