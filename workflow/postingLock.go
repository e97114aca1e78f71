package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

var errLockNotAcquired = errors.New("posting lock not acquired")

// AcquirePostingLock serializes ledger posting per business across instances
// using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the posting transaction.
func AcquirePostingLock(tx *gorm.DB, businessId string) error {
	lockName := fmt.Sprintf("posting:%s", businessId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 5)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("%w: business_id=%s", errLockNotAcquired, businessId)
	}
	return nil
}

func ReleasePostingLock(tx *gorm.DB, businessId string) {
	lockName := fmt.Sprintf("posting:%s", businessId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

const (
	postingRetryAttempts = 3
	postingRetryBackoff  = 50 * time.Millisecond
)

// withPostingRetry runs fn, retrying on lock contention with bounded
// exponential backoff. Exhaustion surfaces as ConcurrencyConflict; any other
// error passes through untouched.
func withPostingRetry(scope string, fn func() error) error {
	backoff := postingRetryBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, errLockNotAcquired) {
			return err
		}
		if attempt >= postingRetryAttempts {
			return utils.ConcurrencyConflictf(scope, attempt)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}
