package schedule

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/email"
	"github.com/brandon/mailsweep/pkg/types"
)

// Cleaner is the part of the email manager a scheduled run needs
type Cleaner interface {
	Scan(ctx context.Context, accountName string, daysBack *int, includeTrash bool) (*types.ScanResult, error)
	DeleteFrom(ctx context.Context, scan *types.ScanResult, category types.Category, permanent bool) (*email.DeleteReport, error)
}

var _ Cleaner = (*email.Manager)(nil)

// Runner executes the due entries of a schedule file
type Runner struct {
	cleaner  Cleaner
	location *time.Location
	logger   *logrus.Logger
}

// NewRunner creates a runner that evaluates schedules in loc
func NewRunner(cleaner Cleaner, loc *time.Location, logger *logrus.Logger) *Runner {
	return &Runner{
		cleaner:  cleaner,
		location: loc,
		logger:   logger,
	}
}

// Run executes every entry due at now and stamps LastRun on those that
// completed. It returns how many entries ran. One account failing does not
// stop the others.
func (r *Runner) Run(ctx context.Context, f *File, now time.Time) int {
	ran := 0
	for i := range f.Schedules {
		entry := &f.Schedules[i]
		if !entry.Due(now, r.location) {
			continue
		}

		log := r.logger.WithField("account", entry.Account)
		deleted, err := r.runEntry(ctx, entry)
		if err != nil {
			log.WithError(err).Error("Scheduled cleanup failed")
			continue
		}

		stamp := now
		entry.LastRun = &stamp
		ran++
		log.WithField("deleted", deleted).Info("Scheduled cleanup complete")
	}
	return ran
}

func (r *Runner) runEntry(ctx context.Context, entry *Entry) (int, error) {
	categories, err := entry.Categories()
	if err != nil {
		return 0, err
	}

	days := entry.GetDaysBack()
	scan, err := r.cleaner.Scan(ctx, entry.Account, &days, entry.IncludesTrash())
	if err != nil {
		return 0, err
	}

	total := 0
	for _, category := range categories {
		report, err := r.cleaner.DeleteFrom(ctx, scan, category, entry.Permanent)
		if err != nil {
			return total, err
		}
		total += report.Submitted
	}
	return total, nil
}
