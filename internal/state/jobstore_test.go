package state

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/user/swarmd/internal/types"
)

func testJob(id types.JobID) *types.Job {
	return &types.Job{
		ID:               id,
		Created:          time.Now().UTC().Truncate(time.Second),
		CreatedBy:        "agent-test",
		Priority:         types.PriorityMedium,
		Complexity:       types.ComplexityModerate,
		RecommendedModel: types.Tier2,
		Title:            "test job",
	}
}

func TestJobStoreCreateAndRead(t *testing.T) {
	store := NewJobStore(t.TempDir())

	if err := store.Create(types.Pending, testJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	job, collection, err := store.Read("job-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if collection != types.Pending {
		t.Errorf("collection = %s, want pending", collection)
	}
	if job.Title != "test job" {
		t.Errorf("title = %q, want %q", job.Title, "test job")
	}
}

func TestJobStoreCreateDuplicate(t *testing.T) {
	store := NewJobStore(t.TempDir())

	if err := store.Create(types.Pending, testJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := store.Create(types.Active, testJob("job-1"))
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
	if dup.Collection != types.Pending {
		t.Errorf("duplicate reported in %s, want pending", dup.Collection)
	}
}

func TestJobStoreReadMissing(t *testing.T) {
	store := NewJobStore(t.TempDir())

	_, _, err := store.Read("job-nope")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestJobStoreListSkipsCorruptAndTemp(t *testing.T) {
	root := t.TempDir()
	store := NewJobStore(root)

	if err := store.Create(types.Pending, testJob("job-good")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dir := filepath.Join(root, "jobs", "pending")
	if err := os.WriteFile(filepath.Join(dir, "job-bad.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "job-x.yaml.tmp"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobs, corrupt, err := store.List(types.Pending)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-good" {
		t.Errorf("jobs = %v, want just job-good", jobs)
	}
	if len(corrupt) != 1 || corrupt[0].ID != "job-bad" {
		t.Errorf("corrupt = %v, want just job-bad", corrupt)
	}
}

func TestJobStoreListEmptyCollection(t *testing.T) {
	store := NewJobStore(t.TempDir())

	jobs, corrupt, err := store.List(types.Done)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 0 || len(corrupt) != 0 {
		t.Errorf("expected empty listing, got %d jobs, %d corrupt", len(jobs), len(corrupt))
	}
}

func TestJobStoreMove(t *testing.T) {
	store := NewJobStore(t.TempDir())

	if err := store.Create(types.Pending, testJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	moved, err := store.Move("job-1", types.Pending, types.Active, func(j *types.Job) {
		j.ClaimedBy = "agent-a"
		j.ClaimedAt = &now
	})
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if moved.ClaimedBy != "agent-a" {
		t.Errorf("mutation not applied: ClaimedBy = %s", moved.ClaimedBy)
	}

	// Source collection no longer has it, destination does.
	pending, _, _ := store.List(types.Pending)
	if len(pending) != 0 {
		t.Errorf("pending still holds %d records", len(pending))
	}
	job, collection, err := store.Read("job-1")
	if err != nil {
		t.Fatalf("read after move failed: %v", err)
	}
	if collection != types.Active || job.ClaimedBy != "agent-a" {
		t.Errorf("got %s in %s, want claimed record in active", job.ID, collection)
	}
}

func TestJobStoreMoveMissing(t *testing.T) {
	store := NewJobStore(t.TempDir())

	_, err := store.Move("job-gone", types.Pending, types.Active, nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestJobStoreMoveRace(t *testing.T) {
	store := NewJobStore(t.TempDir())

	if err := store.Create(types.Pending, testJob("job-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const movers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, movers)
	for i := 0; i < movers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Move("job-1", types.Pending, types.Active, nil); err == nil {
				wins <- struct{}{}
			} else {
				var notFound *NotFoundError
				if !errors.As(err, &notFound) {
					t.Errorf("loser got unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("%d movers won, want exactly 1", won)
	}

	// The record survived, in exactly one collection.
	if _, collection, err := store.Read("job-1"); err != nil || collection != types.Active {
		t.Errorf("record after race: collection=%s err=%v", collection, err)
	}
}
