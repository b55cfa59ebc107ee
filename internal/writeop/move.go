package writeop

import (
	"path"

	"github.com/vdavid/cmdr-core/internal/cmdrerrors"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/logging"
	"github.com/vdavid/cmdr-core/internal/volume"
)

// moveTree implements spec.md §4.2 "Per-file strategy (move)": a same-
// filesystem rename when source and destination are the same volume,
// otherwise copy into a staging name, delete the source only after the
// copy verifies, then rename the staging name to its final name. The
// cross-filesystem path reuses copyEntryTo, so it inherits the same
// symlink-preservation and cycle-detection handling as a plain copy.
func moveTree(op *WriteOperation, sourceVol volume.Volume, sourcePath string, destVol volume.Volume, destDir string, cfg Config, progress *progressTracker, logger *logging.Logger, visited *fsutil.VisitedSet) error {
	if op.isCancelled() {
		return nil
	}

	destPath := path.Join(destDir, path.Base(sourcePath))

	if sourceVol.ID() == destVol.ID() {
		return renameInPlace(op, sourceVol, sourcePath, destPath)
	}

	stagingPath := destPath + ".cmdr-staging"
	if err := copyEntryTo(op, sourceVol, sourcePath, destVol, stagingPath, cfg, progress, logger, visited); err != nil {
		return err
	}
	if op.isCancelled() {
		return nil
	}

	if err := sourceVol.Delete(sourcePath); err != nil {
		return err
	}
	if err := destVol.Rename(stagingPath, destPath, cfg.ConflictResolution == Overwrite); err != nil {
		return err
	}
	op.recordTransaction(destPath)
	return nil
}

func renameInPlace(op *WriteOperation, vol volume.Volume, sourcePath, destPath string) error {
	if exists, err := vol.Exists(destPath); err != nil {
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
			destPath = renameForConflict(vol, destPath)
		case Stop:
			return cmdrerrors.Wrap(cmdrerrors.AlreadyExists, destPath, nil)
		case Overwrite:
			// Rename(force=true) below overwrites directly.
		}
	}
	force := true
	if err := vol.Rename(sourcePath, destPath, force); err != nil {
		return err
	}
	op.recordTransaction(destPath)
	return nil
}
