package writeop

import "github.com/vdavid/cmdr-core/internal/volume"

// rollback traverses the operation's transaction journal in reverse and
// removes each recorded path from destVol, per spec.md §4.2 "Rollback":
// "On error or cancellation (unless skip_rollback is set), traverse the
// transaction in reverse and remove each entry; never touch paths outside
// the transaction." Individual removal failures are swallowed rather than
// aborting the rollback, since a best-effort cleanup is strictly better
// than stopping partway and leaving the rest of the transaction in place.
func rollback(destVol volume.Volume, transaction []string) {
	for i := len(transaction) - 1; i >= 0; i-- {
		_ = destVol.Delete(transaction[i])
	}
}
