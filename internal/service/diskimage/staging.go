package diskimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/rwb-release/internal/logger"
)

const (
	// stagingPattern names staging directories created under the parent.
	stagingPattern = "rwb-release-staging-"
	// applicationsLinkName is the entry the user drags the bundle onto.
	applicationsLinkName = "Applications"
	// stagingParentMode is used when the configured staging parent does not exist yet.
	stagingParentMode = 0o755
)

var errStageRequest = errors.New("bundle path and applications link must be provided")

// StageRequest describes what to stage.
type StageRequest struct {
	// BundlePath is the verified bundle to copy.
	BundlePath string
	// Parent is where the staging directory is created; empty means the system temp dir.
	Parent string
	// ApplicationsLink is the symlink target, normally /Applications.
	ApplicationsLink string
	// Keep leaves the staging directory on disk for inspection, even after a failure.
	Keep bool
}

// Staging is a populated staging directory holding exactly the bundle and the Applications link.
type Staging struct {
	// Dir is the staging directory; it is the image source folder.
	Dir string
	// BundlePath is the copied bundle inside Dir.
	BundlePath string
	// LinkPath is the Applications symlink inside Dir.
	LinkPath string

	keep    bool
	removed bool
}

// Stage creates a fresh staging directory, copies the bundle into it and adds
// the Applications symlink. On failure the partial directory is removed unless
// the request asks to keep it.
func Stage(ctx context.Context, req *StageRequest) (*Staging, error) {
	if req == nil || req.BundlePath == "" || req.ApplicationsLink == "" {
		return nil, errStageRequest
	}

	if req.Parent != "" {
		if err := os.MkdirAll(req.Parent, stagingParentMode); err != nil {
			return nil, fmt.Errorf("create staging parent: %w", err)
		}
	}

	dir, err := os.MkdirTemp(req.Parent, stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	s := &Staging{
		Dir:        dir,
		BundlePath: filepath.Join(dir, filepath.Base(req.BundlePath)),
		LinkPath:   filepath.Join(dir, applicationsLinkName),
		keep:       req.Keep,
	}

	logger.InfoKV(ctx, "Staging bundle", "bundle", req.BundlePath, "staging", dir)

	if err = s.populate(req); err != nil {
		if cleanupErr := s.Cleanup(ctx); cleanupErr != nil {
			logger.WarnKV(ctx, "Failed to remove partial staging directory", "path", dir, "error", cleanupErr)
		}

		return nil, err
	}

	return s, nil
}

func (s *Staging) populate(req *StageRequest) error {
	if err := CopyTree(req.BundlePath, s.BundlePath); err != nil {
		return fmt.Errorf("copy bundle: %w", err)
	}

	if err := os.Symlink(req.ApplicationsLink, s.LinkPath); err != nil {
		return fmt.Errorf("link applications folder: %w", err)
	}

	return nil
}

// Cleanup removes the staging directory unless it is kept. Calling it again is a no-op.
func (s *Staging) Cleanup(ctx context.Context) error {
	if s == nil || s.removed {
		return nil
	}

	if s.keep {
		logger.InfoKV(ctx, "Keeping staging directory", "path", s.Dir)
		return nil
	}

	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}

	s.removed = true

	logger.DebugKV(ctx, "Staging directory removed", "path", s.Dir)

	return nil
}
