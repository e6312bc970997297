package hookrun

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduledRun is a recurring run of all registered modules.
type ScheduledRun struct {
	// Schedule defines how often a run is scheduled. For the format see
	// https://pkg.go.dev/github.com/robfig/cron#hdr-CRON_Expression_Format
	Schedule string
	// EntryID identifies the cronjob
	EntryID cron.EntryID
}

// Schedule adds a recurring run. The schedule expression has a leading
// seconds field.
func (srv *Server) Schedule(schedule string) (ScheduledRun, error) {
	id, err := srv.cron.AddFunc(schedule, func() {
		if _, err := srv.Run(context.Background(), "scheduled"); err != nil {
			srv.log.Error("scheduled run failed", "schedule", schedule, "error", err)
		}
	})
	if err != nil {
		return ScheduledRun{}, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	srv.log.Debug("scheduled test run", "schedule", schedule)

	return ScheduledRun{Schedule: schedule, EntryID: id}, nil
}

// ScheduleFromConfig adds a run for every entry of the `schedule` list
// in the [history] section.
func (srv *Server) ScheduleFromConfig() ([]ScheduledRun, error) {
	runs := []ScheduledRun{}

	for _, schedule := range srv.session.Config("history").AsList("schedule") {
		run, err := srv.Schedule(schedule)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}
