package normalizer

import (
	"bytes"
	"math"
	"testing"

	"fmworker/internal/dataset"
)

func buildDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	ds := dataset.New()

	images, err := dataset.NewUint8([]int{2, 2, 2}, []uint8{0, 1, 127, 128, 200, 254, 255, 64})
	if err != nil {
		t.Fatalf("NewUint8 failed: %v", err)
	}

	labels, err := dataset.NewUint8([]int{2}, []uint8{9, 0})
	if err != nil {
		t.Fatalf("NewUint8 failed: %v", err)
	}

	ds.Set("X_train", images)
	ds.Set("y_train", labels)

	return ds
}

func TestNormalize_ImageArrays(t *testing.T) {
	ds := buildDataset(t)
	original := append([]uint8(nil), ds.Get("X_train").Uint8()...)

	out, warnings, err := New(nil, 0).Normalize(ds)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	images := out.Get("X_train")
	if images.DType != dataset.Float32 {
		t.Fatalf("X_train dtype = %s, want float32", images.DType)
	}

	if len(images.Shape) != 3 || images.Shape[0] != 2 {
		t.Errorf("X_train shape changed: %v", images.Shape)
	}

	for i, v := range images.Float32() {
		if v < 0 || v > 1 {
			t.Errorf("value[%d] = %g outside [0, 1]", i, v)
		}

		// Scaling back must round to the original pixel value.
		back := math.Round(float64(v) * 255)
		if uint8(back) != original[i] {
			t.Errorf("value[%d] round trip: got %g, want %d", i, back, original[i])
		}
	}
}

func TestNormalize_LabelsUntouched(t *testing.T) {
	ds := buildDataset(t)
	before := append([]uint8(nil), ds.Get("y_train").Uint8()...)

	out, _, err := New(nil, 0).Normalize(ds)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	labels := out.Get("y_train")
	if labels.DType != dataset.Uint8 {
		t.Fatalf("y_train dtype = %s, want uint8", labels.DType)
	}

	if labels != ds.Get("y_train") {
		t.Error("y_train was copied instead of passed through")
	}

	if !bytes.Equal(labels.Uint8(), before) {
		t.Error("y_train data changed")
	}
}

func TestNormalize_SkipsFloatImages(t *testing.T) {
	ds := dataset.New()

	images, err := dataset.NewFloat32([]int{1, 2}, []float32{0.1, 0.9})
	if err != nil {
		t.Fatalf("NewFloat32 failed: %v", err)
	}

	ds.Set("X_train", images)

	out, warnings, err := New(nil, 0).Normalize(ds)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}

	if warnings[0].Key != "X_train" {
		t.Errorf("warning key = %s, want X_train", warnings[0].Key)
	}

	// Already-normalized data must not be divided again.
	if got := out.Get("X_train").Float32()[1]; got != 0.9 {
		t.Errorf("value = %g, want 0.9", got)
	}
}

func TestNormalize_OutOfRangeWarning(t *testing.T) {
	ds := dataset.New()

	values, err := dataset.NewInt64([]int{3}, []int64{-1, 100, 300})
	if err != nil {
		t.Fatalf("NewInt64 failed: %v", err)
	}

	ds.Set("X_train", values)

	out, warnings, err := New(nil, 0).Normalize(ds)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}

	// Values pass through scaled as-is, no clipping.
	got := out.Get("X_train").Float32()
	if got[2] <= 1 {
		t.Errorf("out-of-range value was clipped: %g", got[2])
	}
}

func TestNormalize_CustomPatterns(t *testing.T) {
	ds := dataset.New()

	images, _ := dataset.NewUint8([]int{2}, []uint8{10, 20})
	other, _ := dataset.NewUint8([]int{2}, []uint8{30, 40})

	ds.Set("images_train", images)
	ds.Set("extra", other)

	out, _, err := New([]string{"images_*"}, 0).Normalize(ds)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if out.Get("images_train").DType != dataset.Float32 {
		t.Error("images_train was not normalized")
	}

	if out.Get("extra").DType != dataset.Uint8 {
		t.Error("extra was normalized despite not matching")
	}
}

func TestNormalize_InvalidDataset(t *testing.T) {
	ds := dataset.New()

	if _, _, err := New(nil, 0).Normalize(ds); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}
