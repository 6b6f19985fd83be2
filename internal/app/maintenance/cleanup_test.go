package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/database/testutil"
	"github.com/visitdesk/visitdesk/internal/models"
)

func seedJob(t *testing.T, db *gorm.DB, status string, age time.Duration, now time.Time) string {
	t.Helper()
	job := models.NotificationJob{
		Event:     "visit.approved",
		Channel:   "email",
		Recipient: "someone@example.com",
		Template:  "visitor_approved",
		Status:    status,
	}
	require.NoError(t, db.Create(&job).Error)
	require.NoError(t, db.Model(&job).Update("created_at", now.Add(-age)).Error)
	return job.ID
}

func TestCleanupJobsPrunesOnlySettledPastCutoff(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	oldSent := seedJob(t, db, models.JobSent, 120*24*time.Hour, now)
	oldFailed := seedJob(t, db, models.JobFailed, 120*24*time.Hour, now)
	oldPending := seedJob(t, db, models.JobPending, 120*24*time.Hour, now)
	recentSent := seedJob(t, db, models.JobSent, 24*time.Hour, now)

	stats, err := CleanupJobs(context.Background(), db, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Sent)
	require.EqualValues(t, 1, stats.Failed)

	var remaining []models.NotificationJob
	require.NoError(t, db.Find(&remaining).Error)
	ids := make(map[string]bool, len(remaining))
	for _, job := range remaining {
		ids[job.ID] = true
	}
	require.False(t, ids[oldSent])
	require.False(t, ids[oldFailed])
	require.True(t, ids[oldPending], "pending jobs are never pruned")
	require.True(t, ids[recentSent])
}

func TestCleanerRunOnceLeavesVisitsUntouched(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	host := models.Host{Name: "Avery Ops", Active: true}
	require.NoError(t, db.Create(&host).Error)
	visit := models.Visit{
		SessionToken: "ancient-token",
		Status:       models.StatusCheckedOut,
		VisitorName:  "Dana Cole",
		HostID:       host.ID,
		ExpectedDate: now.AddDate(-1, 0, 0),
	}
	require.NoError(t, db.Create(&visit).Error)
	require.NoError(t, db.Model(&visit).Update("created_at", now.AddDate(-1, 0, 0)).Error)

	seedJob(t, db, models.JobSent, 200*24*time.Hour, now)

	cleaner, err := NewCleaner(db,
		WithNow(func() time.Time { return now }),
		WithRetentionDays(30),
	)
	require.NoError(t, err)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var jobCount, visitCount int64
	require.NoError(t, db.Model(&models.NotificationJob{}).Count(&jobCount).Error)
	require.NoError(t, db.Model(&models.Visit{}).Count(&visitCount).Error)
	require.Zero(t, jobCount)
	require.EqualValues(t, 1, visitCount)
}

func TestCleanerStartStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cleaner, err := NewCleaner(db,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
		WithSchedule("@every 1h"),
	)
	require.NoError(t, err)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
