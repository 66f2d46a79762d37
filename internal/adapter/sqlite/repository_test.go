package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwygoda/vidrelay/internal/domain"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func newJob(id, url string, at time.Time) *domain.Job {
	return &domain.Job{
		ID:        id,
		URL:       url,
		PatternID: "tiktok",
		Status:    domain.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestJournal_RecordAndGet(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	job := newJob("a", "https://vm.tiktok.com/x", at)
	if err := j.Record(ctx, job); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := j.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.URL != job.URL || got.PatternID != "tiktok" || got.Status != domain.StatusPending {
		t.Errorf("Get() = %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("Get() CreatedAt = %v, want %v", got.CreatedAt, at)
	}

	_, err = j.Get(ctx, "missing")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrJobNotFound)
	}
}

func TestJournal_RecordOverwrites(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	job := newJob("a", "https://vm.tiktok.com/x", at)
	j.Record(ctx, job)

	job.Status = domain.StatusRunning
	job.OutputPath = "/tmp/a.mp4"
	job.UpdatedAt = at.Add(time.Second)
	j.Record(ctx, job)

	job.Status = domain.StatusFailed
	job.Error = "extraction failed: boom"
	job.UpdatedAt = at.Add(2 * time.Second)
	if err := j.Record(ctx, job); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, _ := j.Get(ctx, "a")
	if got.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusFailed)
	}
	if got.Error != "extraction failed: boom" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.OutputPath != "/tmp/a.mp4" {
		t.Errorf("OutputPath = %q", got.OutputPath)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt changed to %v", got.CreatedAt)
	}
}

func TestJournal_Recent(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		j.Record(ctx, newJob(id, "https://x.com/u/status/1", at.Add(time.Duration(i)*time.Minute)))
	}

	jobs, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Recent() returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Errorf("Recent() order = %s, %s; want c, b", jobs[0].ID, jobs[1].ID)
	}

	jobs, err = j.Recent(ctx, 0)
	if err != nil || len(jobs) != 0 {
		t.Errorf("Recent(0) = %v, %v", jobs, err)
	}
}

func TestJournal_Retention(t *testing.T) {
	j := setupTestJournal(t)
	j.SetRetention(3)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	running := newJob("running", "https://x.com/u/status/0", at)
	running.Status = domain.StatusRunning
	if err := j.Record(ctx, running); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	for i, id := range []string{"a", "b", "c", "d"} {
		job := newJob(id, "https://x.com/u/status/1", at.Add(time.Duration(i+1)*time.Minute))
		job.Status = domain.StatusSucceeded
		if err := j.Record(ctx, job); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	jobs, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	var ids []string
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	want := []string{"d", "c", "b", "running"}
	if len(ids) != len(want) {
		t.Fatalf("kept %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("kept %v, want %v", ids, want)
		}
	}
	if _, err := j.Get(ctx, "a"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Get(a) error = %v, want ErrJobNotFound", err)
	}
}

func TestJournal_RetentionDisabled(t *testing.T) {
	j := setupTestJournal(t)
	j.SetRetention(0)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		job := newJob(string(rune('a'+i)), "https://x.com/u/status/1", at.Add(time.Duration(i)*time.Minute))
		job.Status = domain.StatusFailed
		j.Record(ctx, job)
	}

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats[domain.StatusFailed] != 5 {
		t.Errorf("failed = %d, want 5", stats[domain.StatusFailed])
	}
}

func TestJournal_Stats(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()
	at := time.Now()

	for _, tc := range []struct {
		id     string
		status domain.JobStatus
	}{
		{"a", domain.StatusSucceeded},
		{"b", domain.StatusSucceeded},
		{"c", domain.StatusFailed},
		{"d", domain.StatusRunning},
	} {
		job := newJob(tc.id, "https://x.com/u/status/1", at)
		job.Status = tc.status
		j.Record(ctx, job)
	}

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := map[domain.JobStatus]int64{
		domain.StatusSucceeded: 2,
		domain.StatusFailed:    1,
		domain.StatusRunning:   1,
	}
	for status, n := range want {
		if stats[status] != n {
			t.Errorf("Stats()[%s] = %d, want %d", status, stats[status], n)
		}
	}
	if stats[domain.StatusPending] != 0 {
		t.Errorf("Stats()[pending] = %d, want 0", stats[domain.StatusPending])
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "nested", "journal.db")

	j, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("New() did not create parent directory")
	}
}
