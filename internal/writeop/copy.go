package writeop

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/logging"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// isLocalVolume reports whether v is the Local POSIX variant, using the
// same signal the Volume interface already carries (SupportsExport is
// false only for Local, per spec.md §4.4's cross-volume copy strategy)
// rather than probing LocalPath, since a Volume can decline LocalPath for
// reasons other than not being local.
func isLocalVolume(v volume.Volume) bool { return !v.SupportsExport() }

// copyTree recursively copies sourcePath (a single source item, file or
// directory) from sourceVol into destDir on destVol, applying the
// cross-volume strategy of spec.md §4.4 per file and the conflict/rollback
// machinery of §4.2. It returns early (without error) if op is cancelled.
// visited is the operation-wide (device, inode) set used to abort a
// re-visited subtree rather than recurse into a symlink loop or a directory
// cycle (spec.md §4.2 "Cycle and symlink-loop detection").
func copyTree(op *WriteOperation, sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destDir string, cfg Config, progress *progressTracker, logger *logging.Logger, visited *fsutil.VisitedSet) error {
	destPath := path.Join(destDir, path.Base(sourcePath))
	return copyEntryTo(op, sourceVol, sourcePath, destVol, destPath, cfg, progress, logger, visited)
}

// copyEntryTo is copyTree's underlying primitive, taking the destination's
// exact full path rather than deriving it from a directory and the
// source's basename — used directly by the move engine's copy-then-rename
// staging step, which needs the copy to land under a distinct staged name.
func copyEntryTo(op *WriteOperation, sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destPath string, cfg Config, progress *progressTracker, logger *logging.Logger, visited *fsutil.VisitedSet) error {
	if op.isCancelled() {
		return nil
	}

	entry, err := sourceVol.GetMetadata(sourcePath)
	if err != nil {
		return err
	}
	return copyEntry(op, sourceVol, sourcePath, entry, destVol, destPath, cfg, progress, logger, visited)
}

// copyEntry dispatches one already-stat'd entry to the symlink, special-file,
// directory, or regular-file handler. Symlinks and special files are
// checked before IsDirectory, since a symlink's IsDirectory reflects its
// (possibly directory) target rather than the link itself (spec.md §4.2:
// "Symlinks are preserved, never dereferenced").
func copyEntry(op *WriteOperation, sourceVol volume.Volume, sourcePath string, entry *fsutil.FileEntry, destVol volume.Volume, destPath string, cfg Config, progress *progressTracker, logger *logging.Logger, visited *fsutil.VisitedSet) error {
	switch {
	case entry.IsSymlink:
		return copySymlinkEntry(op, sourceVol, sourcePath, entry, destVol, destPath, progress)
	case entry.IsSpecial:
		if logger != nil {
			logger.Warn(errors.Errorf("skipping %s: sockets, FIFOs, and device files are not copied", sourcePath))
		}
		return nil
	case entry.IsDirectory:
		return copyDirectory(op, sourceVol, sourcePath, entry, destVol, destPath, cfg, progress, logger, visited)
	default:
		return copyFile(op, sourceVol, sourcePath, entry, destVol, destPath, cfg, progress)
	}
}

// copySymlinkEntry preserves a symlink rather than copying the bytes of its
// target, per spec.md §4.2. When either volume has no concrete local path
// (MTP/in-memory have no symlink concept of their own), it falls back to
// materializing the target's contents, the only meaningful behavior for a
// destination kind that cannot represent a link at all.
func copySymlinkEntry(op *WriteOperation, sourceVol volume.Volume, sourcePath string, entry *fsutil.FileEntry, destVol volume.Volume, destPath string, progress *progressTracker) error {
	sourceLocal, sourceOK := sourceVol.LocalPath(sourcePath)
	destLocal, destOK := destVol.LocalPath(destPath)
	if !sourceOK || !destOK {
		if entry.IsDirectory {
			return copyDirectory(op, sourceVol, sourcePath, entry, destVol, destPath, Config{}, progress, nil, fsutil.NewVisitedSet())
		}
		return copyFile(op, sourceVol, sourcePath, entry, destVol, destPath, Config{}, progress)
	}

	target, err := os.Readlink(sourceLocal)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourceLocal, err)
	}

	if exists, err := destVol.Exists(destPath); err != nil {
		return err
	} else if exists {
		resolution, cancelled := op.resolveConflictFor(destPath)
		if cancelled {
			return nil
		}
		switch resolution {
		case Skip:
			return nil
		case Rename:
			destPath = renameForConflict(destVol, destPath)
			destLocal, _ = destVol.LocalPath(destPath)
		case Overwrite:
			os.Remove(destLocal)
		case Stop:
			return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, destPath, nil)
		}
	}

	if err := os.Symlink(target, destLocal); err != nil {
		return cmdrerrors.WrapPaths(cmdrerrors.IoError, sourceLocal, destLocal, err)
	}

	op.recordTransaction(destPath)
	var size uint64
	if entry.Size != nil {
		size = *entry.Size
	}
	progress.addBytes(destPath, size)
	progress.addFile()
	return nil
}

func copyDirectory(op *WriteOperation, sourceVol volume.Volume, sourcePath string, entry *fsutil.FileEntry, destVol volume.Volume, destPath string, cfg Config, progress *progressTracker, logger *logging.Logger, visited *fsutil.VisitedSet) error {
	if visited.VisitAndCheck(entry.Key()) {
		if logger != nil {
			logger.Warn(errors.Errorf("skipping %s: directory already visited during this operation", sourcePath))
		}
		return nil
	}

	if err := destVol.CreateDirectory(destPath); err != nil {
		if !cmdrerrors.Is(err, cmdrerrors.AlreadyExists) {
			return err
		}
	} else {
		op.recordTransaction(destPath)
	}

	children, err := sourceVol.ListDirectory(sourcePath, nil)
	if err != nil {
		return err
	}
	for _, child := range children {
		if op.isCancelled() {
			return nil
		}
		childDest := path.Join(destPath, child.Name)
		if err := copyEntry(op, sourceVol, child.Path, child, destVol, childDest, cfg, progress, logger, visited); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies one file, resolving a destination conflict first (spec.md
// §4.2 "Conflict gating") and then dispatching to the strategy named in
// §4.4's cross-volume copy table.
func copyFile(op *WriteOperation, sourceVol volume.Volume, sourcePath string, entry *fsutil.FileEntry, destVol volume.Volume, destPath string, cfg Config, progress *progressTracker) error {
	if exists, err := destVol.Exists(destPath); err != nil {
		return err
	} else if exists {
		resolution, cancelled := op.resolveConflictFor(destPath)
		if cancelled {
			return nil
		}
		switch resolution {
		case Skip:
			return nil
		case Rename:
			destPath = renameForConflict(destVol, destPath)
		case Overwrite:
			// fall through to the per-file strategy below, which performs
			// a safe overwrite when the destination already exists.
		case Stop:
			return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, destPath, nil)
		}
	}

	var size uint64
	if entry.Size != nil {
		size = *entry.Size
	}

	var copyErr error
	switch {
	case isLocalVolume(sourceVol) && isLocalVolume(destVol):
		copyErr = copyLocalToLocal(sourceVol, sourcePath, destVol, destPath, size, cfg, op, progress)
	case isLocalVolume(sourceVol) && !isLocalVolume(destVol):
		if local, ok := sourceVol.LocalPath(sourcePath); ok {
			copyErr = destVol.ImportFromLocal(local, destPath)
		} else {
			copyErr = streamCopy(sourceVol, sourcePath, destVol, destPath)
		}
	case !isLocalVolume(sourceVol) && isLocalVolume(destVol):
		if local, ok := destVol.LocalPath(destPath); ok {
			copyErr = sourceVol.ExportToLocal(sourcePath, local)
		} else {
			copyErr = streamCopy(sourceVol, sourcePath, destVol, destPath)
		}
	case sourceVol.SupportsStreaming() && destVol.SupportsStreaming():
		copyErr = streamCopy(sourceVol, sourcePath, destVol, destPath)
	default:
		copyErr = exportThenImport(sourceVol, sourcePath, destVol, destPath)
	}
	if copyErr != nil {
		return copyErr
	}

	op.recordTransaction(destPath)
	progress.addBytes(destPath, size)
	progress.addFile()
	return nil
}

// copyLocalToLocal implements spec.md §4.2's "Per-file strategy (copy)":
// chunked network copy, safe-overwrite-via-temp-then-rename, or a native
// stream copy, chosen per file.
func copyLocalToLocal(sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destPath string, size uint64, cfg Config, op *WriteOperation, progress *progressTracker) error {
	sourceLocal, _ := sourceVol.LocalPath(sourcePath)
	destLocal, _ := destVol.LocalPath(destPath)

	if isNetwork, _ := fsutil.IsNetworkFilesystem(filepath.Dir(destLocal)); isNetwork {
		return chunkedNetworkCopy(sourceLocal, destLocal, cfg.NetworkCopyChunk, op, progress, destPath, size)
	}

	if exists, _ := destVol.Exists(destPath); exists && size > 0 {
		return safeOverwriteCopy(sourceLocal, destLocal)
	}

	return nativeCopy(sourceLocal, destLocal)
}

func nativeCopy(sourceLocal, destLocal string) error {
	src, err := os.Open(sourceLocal)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourceLocal, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourceLocal, err)
	}

	dst, err := os.OpenFile(destLocal, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, destLocal, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return cmdrerrors.WrapPaths(cmdrerrors.IoError, sourceLocal, destLocal, err)
	}
	return os.Chtimes(destLocal, info.ModTime(), info.ModTime())
}

// safeOverwriteCopy writes into a uniquely named temp file in the
// destination directory, then atomically renames it over the original,
// per spec.md §4.2: "write into a uniquely-named temp file ... fsync, then
// atomic rename over the original; on failure, remove the temp."
func safeOverwriteCopy(sourceLocal, destLocal string) error {
	temp, err := os.CreateTemp(filepath.Dir(destLocal), ".cmdr-write-*")
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, destLocal, err)
	}
	tempName := temp.Name()

	src, err := os.Open(sourceLocal)
	if err != nil {
		temp.Close()
		os.Remove(tempName)
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourceLocal, err)
	}
	defer src.Close()

	if _, err := io.Copy(temp, src); err != nil {
		temp.Close()
		os.Remove(tempName)
		return cmdrerrors.WrapPaths(cmdrerrors.IoError, sourceLocal, destLocal, err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempName)
		return cmdrerrors.Wrap(cmdrerrors.IoError, destLocal, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return cmdrerrors.Wrap(cmdrerrors.IoError, destLocal, err)
	}
	if err := os.Rename(tempName, destLocal); err != nil {
		os.Remove(tempName)
		return cmdrerrors.WrapPaths(cmdrerrors.IoError, tempName, destLocal, err)
	}
	return nil
}

// chunkedNetworkCopy copies in bounded blocks, checking the cancellation
// flag between blocks, per spec.md §4.2: "Network filesystem destination:
// chunked read/write in 1 MiB blocks, checking the cancellation flag
// between blocks."
func chunkedNetworkCopy(sourceLocal, destLocal string, chunkSize int64, op *WriteOperation, progress *progressTracker, destPath string, total uint64) error {
	src, err := os.Open(sourceLocal)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourceLocal, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destLocal, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, destLocal, err)
	}
	defer dst.Close()

	buf := make([]byte, chunkSize)
	for {
		if op.isCancelled() {
			return nil
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return cmdrerrors.WrapPaths(cmdrerrors.IoError, sourceLocal, destLocal, writeErr)
			}
			progress.addBytes(destPath, uint64(n))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return cmdrerrors.WrapPaths(cmdrerrors.IoError, sourceLocal, destLocal, readErr)
		}
	}
}

// streamCopy is the Non-goal-free fallback for any pair of volumes that
// both support streaming (spec.md §4.4: "both stream-capable: streaming
// transfer").
func streamCopy(sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destPath string) error {
	r, err := sourceVol.OpenReadStream(sourcePath)
	if err != nil {
		return err
	}
	defer r.Close()
	return destVol.WriteFromStream(destPath, r)
}

// exportThenImport stages through a temp local file, per spec.md §4.4:
// "Non-local → non-local, directories or no streaming: export to a temp
// local directory, then import."
func exportThenImport(sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destPath string) error {
	tempDir, err := os.MkdirTemp("", "cmdr-stage-*")
	if err != nil {
		return cmdrerrors.Wrap(cmdrerrors.IoError, sourcePath, err)
	}
	defer os.RemoveAll(tempDir)

	staged := filepath.Join(tempDir, filepath.Base(destPath))
	if err := sourceVol.ExportToLocal(sourcePath, staged); err != nil {
		return err
	}
	return destVol.ImportFromLocal(staged, destPath)
}

func renameForConflict(destVol volume.Volume, destPath string) string {
	dir := path.Dir(destPath)
	ext := path.Ext(destPath)
	base := path.Base(destPath)
	base = base[:len(base)-len(ext)]
	for i := 1; ; i++ {
		candidate := path.Join(dir, base+" ("+itoa(i)+")"+ext)
		if exists, _ := destVol.Exists(candidate); !exists {
			return candidate
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 4)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
