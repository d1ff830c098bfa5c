package observability

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered logs before process exit. Metrics are pull-based
// and need no flush. Sync errors from non-syncable stderr (ENOTTY, EINVAL) are ignored.
func FlushTelemetry(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
