// Package digest builds and schedules a daily summary of sync activity.
package digest

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Notifier delivers a formatted digest. Satisfied by *notify.Discord.
type Notifier interface {
	Digest(title, body string)
}

// Report holds computed sync metrics for a 24-hour period.
type Report struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Created     int
	Completed   int
	Failed      int
	StillFailed int // failed rows currently awaiting an operator retry
}

// BuildDaily queries the last 24 hours of sync activity. Returns nil when
// there was no activity, so an idle deployment stays quiet.
func BuildDaily(db *gorm.DB) (*Report, error) {
	now := time.Now()
	since := now.Add(-24 * time.Hour)

	report := &Report{PeriodStart: since, PeriodEnd: now}

	var created int64
	if err := db.Model(&models.Mapping{}).
		Where("created_at >= ? AND created_at < ?", since, now).
		Count(&created).Error; err != nil {
		return nil, fmt.Errorf("digest: count created: %w", err)
	}
	report.Created = int(created)

	var completed int64
	db.Model(&models.Mapping{}).
		Where("sync_status = ? AND updated_at >= ? AND updated_at < ?", models.StatusCompleted, since, now).
		Count(&completed)
	report.Completed = int(completed)

	var failed int64
	db.Model(&models.Mapping{}).
		Where("sync_status = ? AND updated_at >= ? AND updated_at < ?", models.StatusFailed, since, now).
		Count(&failed)
	report.Failed = int(failed)

	var stillFailed int64
	db.Model(&models.Mapping{}).
		Where("sync_status = ?", models.StatusFailed).
		Count(&stillFailed)
	report.StillFailed = int(stillFailed)

	if report.Created == 0 && report.Completed == 0 && report.Failed == 0 {
		return nil, nil
	}
	return report, nil
}

// Format renders a report as a digest title and body.
func Format(report *Report) (title, body string) {
	var lines []string
	lines = append(lines, fmt.Sprintf("**Period**: %s – %s",
		report.PeriodStart.Format("Jan 2 15:04"),
		report.PeriodEnd.Format("Jan 2 15:04")))
	lines = append(lines, fmt.Sprintf("**Syncs**: %d started, %d completed, %d failed",
		report.Created, report.Completed, report.Failed))
	if report.StillFailed > 0 {
		lines = append(lines, fmt.Sprintf("**Awaiting retry**: %d", report.StillFailed))
	}
	return "Daily Sync Digest", strings.Join(lines, "\n")
}

// Scheduler runs the daily digest on a cron schedule.
type Scheduler struct {
	c *cron.Cron
}

// Start schedules the digest with a standard 5-field cron expression and
// begins running it. Returns an error only for an unparseable expression.
func Start(db *gorm.DB, notifier Notifier, spec string) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report, err := BuildDaily(db)
		if err != nil {
			log.Printf("digest: build: %v", err)
			return
		}
		if report == nil {
			return // no activity, stay quiet
		}
		title, body := Format(report)
		notifier.Digest(title, body)
	})
	if err != nil {
		return nil, fmt.Errorf("digest: schedule %q: %w", spec, err)
	}
	c.Start()
	return &Scheduler{c: c}, nil
}

// Stop halts the schedule, waiting for a running digest to finish.
func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
