package artifacts

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStoreWritesUnderClientDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFSSink(dir, testLogger())

	artifact := domain.Artifact{
		ReportID: "r1",
		ClientID: "acme",
		Format:   domain.FormatText,
		Filename: "acme-daily-20260310-120000.txt",
		Content:  []byte("ACME BUSINESS INTELLIGENCE BRIEF\n"),
	}
	path, err := sink.Store(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	want := filepath.Join(dir, "acme", "acme-daily-20260310-120000.txt")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(artifact.Content) {
		t.Fatalf("content round trip mismatch: %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0444 {
		t.Fatalf("artifact mode = %v, want read-only", perm)
	}

	// No temp file should survive a successful store.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestStoreOverwritesExistingArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFSSink(dir, testLogger())
	artifact := domain.Artifact{
		ReportID: "r1",
		ClientID: "acme",
		Format:   domain.FormatText,
		Filename: "acme-daily-20260310-120000.txt",
		Content:  []byte("first"),
	}
	if _, err := sink.Store(context.Background(), artifact); err != nil {
		t.Fatalf("first Store: %v", err)
	}

	artifact.Content = []byte("second")
	path, err := sink.Store(context.Background(), artifact)
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("content = %q, want regenerated artifact", data)
	}
}

func TestStoreRejectsEmptyArtifacts(t *testing.T) {
	t.Parallel()

	sink := NewFSSink(t.TempDir(), testLogger())

	if _, err := sink.Store(context.Background(), domain.Artifact{
		ClientID: "acme",
		Filename: "x.txt",
	}); err == nil {
		t.Fatal("expected error for empty content")
	}
	if _, err := sink.Store(context.Background(), domain.Artifact{
		ClientID: "acme",
		Content:  []byte("x"),
	}); err == nil {
		t.Fatal("expected error for missing filename")
	}
}

func TestStoreSeparatesClients(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewFSSink(dir, testLogger())

	for _, client := range []string{"acme", "globex"} {
		if _, err := sink.Store(context.Background(), domain.Artifact{
			ReportID: "r",
			ClientID: client,
			Format:   domain.FormatText,
			Filename: client + "-weekly-20260310-120000.txt",
			Content:  []byte(client),
		}); err != nil {
			t.Fatalf("Store %s: %v", client, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want one per client", files)
	}
	for _, f := range files {
		if filepath.Dir(f) != "acme" && filepath.Dir(f) != "globex" {
			t.Fatalf("artifact %q not under a client directory", f)
		}
	}
}
