package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	calls int32
	delay time.Duration
	err   error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.calls, 1)
	if j.delay > 0 {
		time.Sleep(j.delay)
	}
	return j.err
}

func TestRegisterSkipsDisabledJobs(t *testing.T) {
	s := New("", zerolog.Nop())
	job := &countingJob{name: "disabled"}
	require.NoError(t, s.Register(job, JobSpec{Enabled: false, Trigger: "* * * * *"}))
	assert.Len(t, s.cron.Entries(), 0)
}

func TestRegisterRejectsInvalidCronExpression(t *testing.T) {
	s := New("", zerolog.Nop())
	job := &countingJob{name: "bad"}
	err := s.Register(job, JobSpec{Enabled: true, Trigger: "not a cron string"})
	assert.Error(t, err)
}

func TestRunOnceInvokesJobAndWritesReport(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	job := &countingJob{name: "daily_update"}

	s.runOnce(job, JobSpec{Report: true}, 1)

	assert.EqualValues(t, 1, job.calls)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var r report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "daily_update", r.Job)
	assert.True(t, r.Success)
}

func TestRunOnceRecordsFailureInReport(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	job := &countingJob{name: "gap_fill", err: assert.AnError}

	s.runOnce(job, JobSpec{Report: true}, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var r report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.False(t, r.Success)
	assert.NotEmpty(t, r.Error)
}

func TestReportFilenameConventions(t *testing.T) {
	at := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "daily_update_report_2024-01-05.json", reportFilename("daily_update", at))
	assert.Equal(t, "download_report_20240105_103000.json", reportFilename("historical_download", at))
	assert.Equal(t, "data_analysis_gap_fill_20240105_103000.json", reportFilename("gap_fill", at))
}

func TestRunOnceDecrementsRunningCountAfterCompletion(t *testing.T) {
	s := New("", zerolog.Nop())
	job := &countingJob{name: "x"}
	s.runOnce(job, JobSpec{}, 1)
	assert.Equal(t, 0, s.running["x"])
}
