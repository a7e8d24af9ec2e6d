// Package placement decides where a processed file goes and moves it there.
package placement

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"plexprep/internal/logging"
	"plexprep/internal/probe"
	"plexprep/internal/util"
)

// Placement is the computed destination of a processed file.
type Placement struct {
	Destination  string
	RemoveSource bool
	// DefaultMove is set when the container changed and the file simply
	// replaces the source under its new extension.
	DefaultMove bool
	Optimized   bool
}

// Placer computes placements against a filesystem.
type Placer struct {
	Fs afero.Fs
	// RedirectLossy sends non-h264 sources to the optimized-version tree
	// instead of replacing them.
	RedirectLossy bool
	Logger        *slog.Logger
}

// New returns a Placer on fs. A nil fs means the OS filesystem.
func New(fs afero.Fs, redirectLossy bool, logger *slog.Logger) *Placer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Placer{Fs: fs, RedirectLossy: redirectLossy, Logger: logging.OrDiscard(logger)}
}

// Place decides where processed, the command output for source, ends up.
// pr is the probe of source.
func (p *Placer) Place(pr *probe.Result, source, processed string) (Placement, error) {
	dir := filepath.Dir(source)
	base := filepath.Base(source)

	if util.Ext(processed) != util.Ext(source) {
		dest := filepath.Join(dir, util.Stem(source)+filepath.Ext(processed))
		p.Logger.Debug("container changed, replacing source", "stage", "post-processing", "path", source, "destination", dest)
		return Placement{Destination: dest, RemoveSource: true, DefaultMove: true}, nil
	}

	if p.RedirectLossy && pr.AnyVideoNot("h264") {
		optDir := OptimizedFor(source)
		if err := p.Fs.MkdirAll(optDir, 0o755); err != nil {
			return Placement{}, fmt.Errorf("create %s: %w", optDir, err)
		}
		dest := filepath.Join(optDir, base)
		p.Logger.Debug("video stream is not h264, placing optimized version", "stage", "post-processing", "path", source, "destination", dest)
		return Placement{Destination: dest, Optimized: true}, nil
	}

	return Placement{Destination: filepath.Join(dir, base)}, nil
}

// Move puts processed at pl.Destination and removes source when asked.
// Rename is tried first; across devices the file is copied.
func (p *Placer) Move(pl Placement, processed, source string) error {
	if pl.Destination == "" {
		return errors.New("empty destination")
	}
	if err := p.Fs.MkdirAll(filepath.Dir(pl.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := p.Fs.Rename(processed, pl.Destination); err != nil {
		if cerr := p.copyFile(processed, pl.Destination); cerr != nil {
			return fmt.Errorf("move %s: %w", processed, errors.Join(err, cerr))
		}
		if rerr := p.Fs.Remove(processed); rerr != nil && !os.IsNotExist(rerr) {
			return fmt.Errorf("remove %s: %w", processed, rerr)
		}
	}
	if pl.RemoveSource && source != pl.Destination {
		if err := p.Fs.Remove(source); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove source: %w", err)
		}
	}
	return nil
}

func (p *Placer) copyFile(src, dst string) error {
	in, err := p.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := p.Fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = p.Fs.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = p.Fs.Remove(tmp)
		return err
	}
	return p.Fs.Rename(tmp, dst)
}
