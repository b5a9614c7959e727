// Package artifacts stores rendered report artifacts on the local
// filesystem, one directory per client.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

// FSSink writes artifacts under a root output directory.
type FSSink struct {
	dir    string
	logger *slog.Logger
}

var _ ports.ArtifactSink = (*FSSink)(nil)

func NewFSSink(dir string, logger *slog.Logger) *FSSink {
	return &FSSink{
		dir:    dir,
		logger: logger.With("component", "artifacts"),
	}
}

// Store writes the artifact to <dir>/<clientID>/<filename> and returns the
// final path. The write goes through a temp file so a crash mid-write never
// leaves a truncated artifact behind.
func (s *FSSink) Store(ctx context.Context, artifact domain.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if artifact.Filename == "" {
		return "", fmt.Errorf("artifact for report %s has no filename", artifact.ReportID)
	}
	if len(artifact.Content) == 0 {
		return "", fmt.Errorf("artifact %s is empty", artifact.Filename)
	}

	clientDir := filepath.Join(s.dir, artifact.ClientID)
	if err := os.MkdirAll(clientDir, 0755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(clientDir, artifact.Filename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, artifact.Content, 0644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	// Published artifacts are read-only; consumers must never edit them in
	// place. Regeneration replaces the whole file through the rename above.
	if err := os.Chmod(path, 0444); err != nil {
		return "", fmt.Errorf("seal artifact: %w", err)
	}

	s.logger.Info("artifact stored",
		"client", artifact.ClientID,
		"format", artifact.Format,
		"path", path,
		"bytes", len(artifact.Content))
	return path, nil
}
