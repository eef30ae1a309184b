package pipeline

import "testing"

func TestDeriveOutputDir(t *testing.T) {
	got := DeriveOutputDir("gs://b/fashion-mnist/raw/ds.npz", "_normalized")
	if got != "gs://b/fashion-mnist/raw_normalized" {
		t.Errorf("DeriveOutputDir = %s", got)
	}
}

func TestDeriveNormalizedName(t *testing.T) {
	cases := map[string]string{
		"dataset.npz":  "dataset_normalized.npz",
		"fashion.npz":  "fashion_normalized.npz",
		"no_extension": "no_extension_normalized",
	}

	for in, want := range cases {
		if got := DeriveNormalizedName(in, "_normalized"); got != want {
			t.Errorf("DeriveNormalizedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsNormalizedPath(t *testing.T) {
	cases := map[string]bool{
		"fashion-mnist/raw/ds.npz":                       false,
		"fashion-mnist/raw_normalized/ds_normalized.npz": true,
		"fashion-mnist/raw_normalized/README.md":         true,
		"fashion-mnist/raw/ds_normalized.npz":            true,
		"other/data.npz":                                 false,
	}

	for p, want := range cases {
		if got := IsNormalizedPath(p, "_normalized"); got != want {
			t.Errorf("IsNormalizedPath(%q) = %v, want %v", p, got, want)
		}
	}
}
