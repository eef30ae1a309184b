package metadata

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var signTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSignAndVerify(t *testing.T) {
	content := "# Dataset\n\nSome description.\n"

	signed := Sign(content, "fmworker", signTime)

	if !strings.Contains(signed, TagStart) || !strings.Contains(signed, TagEnd) {
		t.Fatal("signed content missing provenance tags")
	}

	ok, err := Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true")
	}
}

func TestExtract(t *testing.T) {
	signed := Sign("hello", "fmworker", signTime)

	p, clean := Extract(signed)
	if p == nil {
		t.Fatal("Extract returned nil provenance")
	}

	if p.Tool != "fmworker" {
		t.Errorf("Tool = %q, want fmworker", p.Tool)
	}

	if !p.GeneratedAt.Equal(signTime) {
		t.Errorf("GeneratedAt = %v, want %v", p.GeneratedAt, signTime)
	}

	if p.Hash == "" {
		t.Error("Hash is empty")
	}

	if clean != "hello" {
		t.Errorf("clean content = %q, want %q", clean, "hello")
	}
}

func TestVerify_Tampered(t *testing.T) {
	signed := Sign("original content", "fmworker", signTime)
	tampered := strings.Replace(signed, "original", "modified", 1)

	ok, err := Verify(tampered)
	if ok {
		t.Error("Verify = true for tampered content")
	}
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("err = %v, want ErrHashMismatch", err)
	}
}

func TestVerify_NoBlock(t *testing.T) {
	if _, err := Verify("plain markdown"); !errors.Is(err, ErrNoProvenanceBlock) {
		t.Errorf("err = %v, want ErrNoProvenanceBlock", err)
	}
}

func TestSign_ReplacesExistingBlock(t *testing.T) {
	signed := Sign("doc", "fmworker", signTime)
	resigned := Sign(signed, "fmworker", signTime.Add(time.Hour))

	if n := strings.Count(resigned, TagStart); n != 1 {
		t.Fatalf("found %d provenance blocks, want 1", n)
	}

	ok, err := Verify(resigned)
	if err != nil || !ok {
		t.Fatalf("Verify after re-sign: ok=%v err=%v", ok, err)
	}
}
