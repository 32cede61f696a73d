// Package quota guards offline capture against exhausting local storage.
package quota

import (
	"context"
	"log/slog"

	"golang.org/x/sys/unix"

	"gardenlog/internal/logging"
)

// Usage reports storage consumption in bytes.
type Usage struct {
	Used  uint64
	Quota uint64
}

// Estimator supplies storage usage figures. Implementations may query the
// platform storage API or a remote accounting service.
type Estimator interface {
	Estimate(ctx context.Context) (Usage, error)
}

// Result is the outcome of a quota check.
type Result struct {
	HasSpace bool
	Usage    Usage
}

// Guard applies a safety margin on top of an Estimator. When usage cannot be
// determined the guard fails open: refusing all offline capture is worse than
// risking a later write failure.
type Guard struct {
	estimator Estimator
	margin    float64
	logger    *slog.Logger
}

// NewGuard builds a guard reserving the given fraction of total quota.
func NewGuard(estimator Estimator, margin float64, logger *slog.Logger) *Guard {
	return &Guard{
		estimator: estimator,
		margin:    margin,
		logger:    logging.NewComponentLogger(logger, "quota"),
	}
}

// Check reports whether requiredBytes fit within the quota once the safety
// margin is reserved.
func (g *Guard) Check(ctx context.Context, requiredBytes uint64) Result {
	if g == nil || g.estimator == nil {
		return Result{HasSpace: true}
	}

	usage, err := g.estimator.Estimate(ctx)
	if err != nil {
		g.logger.Warn("quota estimation failed, admitting capture",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify storage availability"),
		)
		return Result{HasSpace: true}
	}
	if usage.Quota == 0 {
		return Result{HasSpace: true, Usage: usage}
	}

	reserve := uint64(float64(usage.Quota) * g.margin)
	available := uint64(0)
	if usage.Quota > usage.Used+reserve {
		available = usage.Quota - usage.Used - reserve
	}

	return Result{HasSpace: requiredBytes <= available, Usage: usage}
}

// DiskEstimator reports usage of the filesystem holding the data directory.
type DiskEstimator struct {
	Path string
}

// Estimate returns filesystem usage for the configured path.
func (d DiskEstimator) Estimate(ctx context.Context) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(d.Path, &stat); err != nil {
		return Usage{}, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return Usage{Used: total - free, Quota: total}, nil
}
