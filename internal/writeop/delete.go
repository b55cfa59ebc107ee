package writeop

import "github.com/vdavid/cmdr-core/internal/volume"

// deleteTree removes each of sources from vol. Delete has no rollback
// journal of its own (there is nothing to un-delete); cancellation simply
// stops before processing the next source.
func deleteTree(op *WriteOperation, vol volume.Volume, sources []string, progress *progressTracker) error {
	for _, source := range sources {
		if op.isCancelled() {
			return nil
		}
		entry, err := vol.GetMetadata(source)
		if err != nil {
			return err
		}
		if err := vol.Delete(source); err != nil {
			return err
		}
		if entry.Size != nil {
			progress.addBytes(source, *entry.Size)
		}
		progress.addFile()
	}
	return nil
}
