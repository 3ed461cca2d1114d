package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.mp3", "normal-file.mp3"},
		{"file:with:colons.mp3", "file_with_colons.mp3"},
		{"file<with>brackets.mp3", "file_with_brackets.mp3"},
		{"file/with\\slashes.mp3", "file_with_slashes.mp3"},
		{"file|with|pipes.mp3", "file_with_pipes.mp3"},
		{"file?with*wildcards.mp3", "file_with_wildcards.mp3"},
		{"file\"with\"quotes.mp3", "file_with_quotes.mp3"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"  padded  ", "padded"},
		{"Cafe\u0301 del Mar", "Caf\u00e9 del Mar"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeFileName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWorkspace(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "batch-")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	dir, err := ws.ItemDir(0)
	if err != nil {
		t.Fatalf("ItemDir: %v", err)
	}
	if filepath.Base(dir) != "item-0001" {
		t.Errorf("ItemDir(0) = %q", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
	if err := ws.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestAtomicFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out", "batch.zip")

	if err := WriteFileAtomic(target, []byte("zip")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if data, _ := os.ReadFile(target); string(data) != "zip" {
		t.Errorf("content = %q", data)
	}

	f, err := CreateAtomic(target)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.Write([]byte("partial"))
	f.Abort()

	if data, _ := os.ReadFile(target); string(data) != "zip" {
		t.Errorf("aborted write replaced target: %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestCoverArt(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for x := 0; x < 320; x++ {
		for y := 0; y < 180; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		maxSize int
		want    int
	}{
		{0, 180},
		{100, 100},
		{500, 180},
	}
	svc := NewImageService()
	for _, tt := range tests {
		out, err := svc.CoverArt(context.Background(), buf.Bytes(), tt.maxSize)
		if err != nil {
			t.Fatalf("CoverArt(%d): %v", tt.maxSize, err)
		}
		img, err := jpeg.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("output is not JPEG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != tt.want || b.Dy() != tt.want {
			t.Errorf("CoverArt(%d) size = %v, want %dx%d", tt.maxSize, b, tt.want, tt.want)
		}
	}
}

func TestCoverArtRejectsGarbage(t *testing.T) {
	if _, err := NewImageService().CoverArt(context.Background(), []byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}
