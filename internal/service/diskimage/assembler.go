package diskimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/rwb-release/internal/logger"
	"github.com/oshokin/rwb-release/internal/service/common"
)

// outputDirMode is used when the image output directory does not exist yet.
const outputDirMode = 0o755

var errAssembleRequest = errors.New("volume name, source folder, output path and format must be provided")

// Request is the input of disk image creation.
type Request struct {
	// VolumeName is shown when the image is mounted.
	VolumeName string
	// SourceDir is the staging directory whose contents become the volume.
	SourceDir string
	// OutputPath is the image file to write; an existing file is overwritten.
	OutputPath string
	// Format is the hdiutil image format, e.g. UDZO.
	Format string
}

// Assembler creates a disk image from a folder.
type Assembler interface {
	Assemble(ctx context.Context, req *Request) error
}

// Hdiutil creates images with macOS hdiutil.
type Hdiutil struct {
	runner common.Runner
}

// NewHdiutil returns an assembler running hdiutil through runner.
func NewHdiutil(runner common.Runner) *Hdiutil {
	return &Hdiutil{runner: runner}
}

// Assemble implements Assembler.
func (h *Hdiutil) Assemble(ctx context.Context, req *Request) error {
	if req == nil || req.VolumeName == "" || req.SourceDir == "" || req.OutputPath == "" || req.Format == "" {
		return errAssembleRequest
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), outputDirMode); err != nil {
		return fmt.Errorf("create image output directory: %w", err)
	}

	logger.InfoKV(ctx, "Creating disk image", "volume", req.VolumeName, "output", req.OutputPath, "format", req.Format)

	if err := h.runner.Run(ctx, Command(req)); err != nil {
		return fmt.Errorf("hdiutil: %w", err)
	}

	return nil
}

// Command is the hdiutil invocation for req.
func Command(req *Request) common.Command {
	return common.Command{
		Name: "hdiutil",
		Args: []string{
			"create",
			"-volname", req.VolumeName,
			"-srcfolder", req.SourceDir,
			"-ov",
			"-format", req.Format,
			req.OutputPath,
		},
	}
}
