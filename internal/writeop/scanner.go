package writeop

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// preflight runs the ordered checks of spec.md §4.2 "Pre-flight checks"
// before any scanning begins: canonicalization, name/path length limits,
// destination-inside-source / same-file rejection. Checks that only make
// sense for two real OS paths (same-device-and-inode, inside-source) are
// skipped when either side isn't backed by a concrete local path, since a
// cross-volume transfer can't alias the same inode by construction.
func preflight(sourceVol volume.Volume, sources []string, destVol volume.Volume, destDir string) error {
	for _, source := range sources {
		base := filepath.Base(source)
		if err := fsutil.ValidateFilename(base); err != nil {
			return err
		}
		if err := fsutil.ValidatePathLength(source); err != nil {
			return err
		}
	}

	if len(sources) == 0 {
		return cmdrerrors.New(cmdrerrors.NotFound, "no sources given")
	}

	destLocal, destOK := destVol.LocalPath(destDir)
	for _, source := range sources {
		sourceLocal, sourceOK := sourceVol.LocalPath(source)
		if !sourceOK || !destOK {
			continue
		}
		canonicalSource, err := filepath.EvalSymlinks(sourceLocal)
		if err == nil {
			sourceLocal = canonicalSource
		}
		canonicalDest, err := filepath.EvalSymlinks(destLocal)
		if err == nil {
			destLocal = canonicalDest
		}

		if canonicalDest == canonicalSource {
			return cmdrerrors.WrapPaths(cmdrerrors.SameFile, sourceLocal, destLocal, nil)
		}
		rel, err := filepath.Rel(sourceLocal, destLocal)
		if err == nil && rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".." {
			return cmdrerrors.WrapPaths(cmdrerrors.DestinationInsideSource, sourceLocal, destLocal, nil)
		}

		if sourceInfo, err := os.Stat(sourceLocal); err == nil {
			if destInfo, err := os.Stat(destLocal); err == nil && os.SameFile(sourceInfo, destInfo) {
				return cmdrerrors.WrapPaths(cmdrerrors.SameFile, sourceLocal, destLocal, nil)
			}
		}
	}

	if exists, err := destVol.Exists(destDir); err != nil {
		return err
	} else if !exists {
		return cmdrerrors.Wrap(cmdrerrors.NotFound, destDir, nil)
	}
	return nil
}

// scanSources produces a ScanResult for sources, fanning the top-level
// entries out across a bounded worker pool (spec.md §3.4: "errgroup.Group
// with SetLimit... default 8"), merging each source's independently
// scanned ScanResult. Each volume variant owns its own cycle-detection set
// internally (real device+inode for Local, none needed for the symlink-
// free MTP/in-memory trees), so this fan-out parallelizes across sources
// without attempting to share a single visited-set across goroutines.
func scanSources(sourceVol volume.Volume, sources []string, destDir string, cfg Config, cancelled func() bool) (*volume.ScanResult, error) {
	var (
		mu     sync.Mutex
		merged = &volume.ScanResult{}
	)

	group := new(errgroup.Group)
	group.SetLimit(cfg.MaxConcurrentScans)

	for _, source := range sources {
		source := source
		group.Go(func() error {
			result, err := sourceVol.ScanForCopy([]string{source}, volume.ScanOptions{
				DestinationDir:     destDir,
				MaxConflictSamples: cfg.MaxConflictSamples,
				Cancelled:          cancelled,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			merged.FileCount += result.FileCount
			merged.DirCount += result.DirCount
			merged.TotalBytes += result.TotalBytes
			merged.ConflictTotal += result.ConflictTotal
			if len(merged.ConflictSample) < cfg.MaxConflictSamples {
				remaining := cfg.MaxConflictSamples - len(merged.ConflictSample)
				if remaining > len(result.ConflictSample) {
					remaining = len(result.ConflictSample)
				}
				merged.ConflictSample = append(merged.ConflictSample, result.ConflictSample[:remaining]...)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}
