package main

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveTree(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "crewd.db"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "wal"), []byte("wal"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	n, err := archiveTree(tw, "store", root)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 files archived, got %d", n)
	}
	tw.Close()

	names := map[string]bool{}
	tr := tar.NewReader(&buf)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names[hdr.Name] = true
	}
	if !names["store/crewd.db"] || !names["store/sub/wal"] {
		t.Errorf("unexpected entries: %v", names)
	}
}

func TestArchiveTreeMissingRoot(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	n, err := archiveTree(tw, "nats", filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("missing root should be skipped, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 files, got %d", n)
	}
}

func TestSecurePath(t *testing.T) {
	root := "/data/store"
	if _, err := securePath(root, "sub/file.db"); err != nil {
		t.Errorf("valid path rejected: %v", err)
	}
	if _, err := securePath(root, "../escape"); err == nil {
		t.Error("path traversal not rejected")
	}
	if _, err := securePath(root, "../../etc/passwd"); err == nil {
		t.Error("deep traversal not rejected")
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.in); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
