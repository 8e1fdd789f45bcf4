package supervisor

import (
	"time"

	"github.com/canslim/sentinel/internal/repository"
	"github.com/robfig/cron/v3"
)

// watchingExitedExpiryDays is how long a re-entry candidate sits in
// watching_exited before the housekeeping job drops it back out of
// consideration, per spec.md §4.3's watching_exited window.
const watchingExitedExpiryDays = 60

// ddayWindowDays is the age, in calendar days, past which housekeeping
// marks a stored distribution day expired. MarketWorker's rolling count
// is recomputed from bars and does not read these rows.
const ddayWindowDays = 25

// Job is a single named unit of scheduled work, the shape
// trader-go/internal/scheduler wraps cron.Cron with.
type Job interface {
	Name() string
	Run() error
}

// housekeepingJob expires stale watching_exited positions and stale
// distribution days once a day, off the UI/alert hot path.
type housekeepingJob struct {
	positions *repository.PositionRepository
	regimes   *repository.RegimeRepository
}

func (j *housekeepingJob) Name() string { return "housekeeping" }

func (j *housekeepingJob) Run() error {
	if _, err := j.positions.ExpireWatchingExited(watchingExitedExpiryDays); err != nil {
		return err
	}

	windowCutoff := time.Now().AddDate(0, 0, -ddayWindowDays)
	for _, symbol := range []string{"SPY", "QQQ"} {
		active, err := j.regimes.GetActiveDistributionDays(symbol, time.Time{})
		if err != nil {
			return err
		}
		for _, d := range active {
			if d.Date.Before(windowCutoff) {
				if err := j.regimes.ExpireDistributionDay(symbol, d.Date); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// EnableHousekeeping registers the daily housekeeping job on the given
// cron schedule (6-field, seconds-first syntax, matching cron.WithSeconds)
// and starts the scheduler. Grounded on
// trader-go/internal/scheduler/scheduler.go's Job/Scheduler shape —
// cron.New(cron.WithSeconds()) plus an AddFunc-backed AddJob that logs
// start/success/failure around job.Run() — reused here for the one
// cadence in this system that maps more naturally onto a calendar
// schedule than onto base.runLoop's fixed-or-market-aware ticker.
func (s *Supervisor) EnableHousekeeping(positions *repository.PositionRepository, regimes *repository.RegimeRepository, schedule string) error {
	s.cron = cron.New(cron.WithSeconds())
	job := &housekeepingJob{positions: positions, regimes: regimes}

	_, err := s.cron.AddFunc(schedule, func() {
		log := s.log.With().Str("job", job.Name()).Logger()
		log.Debug().Msg("housekeeping job starting")
		if err := job.Run(); err != nil {
			log.Error().Err(err).Msg("housekeeping job failed")
			return
		}
		log.Debug().Msg("housekeeping job completed")
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}
