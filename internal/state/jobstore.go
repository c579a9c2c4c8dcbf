// internal/state/jobstore.go
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/swarmd/internal/types"
)

// NotFoundError reports that a job id is absent from the collection being
// searched. During a claim this is the expected "someone else got there
// first" signal, not a system fault.
type NotFoundError struct {
	ID types.JobID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

// DuplicateIDError reports an id collision on create, checked across all
// three collections.
type DuplicateIDError struct {
	ID         types.JobID
	Collection types.Collection
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("job id already exists in %s: %s", e.Collection, e.ID)
}

// JobStore is a YAML-file-backed job store. Each job is one file named by
// its id, partitioned into pending/active/done directories under
// <root>/jobs. The file's directory is the record's state.
//
// JobStore itself only guarantees filesystem-level atomicity of each
// operation; serializing competing claims is the coordinator's job.
type JobStore struct {
	root string
}

// NewJobStore creates a job store rooted at the given state directory.
func NewJobStore(root string) *JobStore {
	return &JobStore{root: root}
}

func (s *JobStore) collectionDir(c types.Collection) string {
	return filepath.Join(s.root, "jobs", string(c))
}

func (s *JobStore) jobPath(c types.Collection, id types.JobID) string {
	return filepath.Join(s.collectionDir(c), string(id)+".yaml")
}

// Create writes a new record into the given collection. Fails with
// DuplicateIDError if the id already exists anywhere in the store.
func (s *JobStore) Create(collection types.Collection, job *types.Job) error {
	for _, c := range types.Collections() {
		if _, err := os.Stat(s.jobPath(c, job.ID)); err == nil {
			return &DuplicateIDError{ID: job.ID, Collection: c}
		}
	}
	return s.write(collection, job)
}

// List returns all parseable records in a collection plus a report of any
// records that failed to parse. Corrupt records are excluded rather than
// aborting the whole listing.
func (s *JobStore) List(collection types.Collection) ([]*types.Job, []*types.CorruptRecord, error) {
	entries, err := os.ReadDir(s.collectionDir(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*types.Job{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read %s dir: %w", collection, err)
	}

	var jobs []*types.Job
	var corrupt []*types.CorruptRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id := types.JobID(strings.TrimSuffix(name, ".yaml"))
		job, err := s.readFile(s.jobPath(collection, id))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Moved away between ReadDir and ReadFile.
				continue
			}
			corrupt = append(corrupt, &types.CorruptRecord{ID: id, Reason: err.Error()})
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, corrupt, nil
}

// Read locates a record by id across all three collections.
func (s *JobStore) Read(id types.JobID) (*types.Job, types.Collection, error) {
	for _, c := range types.Collections() {
		job, err := s.readFile(s.jobPath(c, id))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, c, err
		}
		return job, c, nil
	}
	return nil, "", &NotFoundError{ID: id}
}

// Move atomically relocates a record between collections and applies a
// field mutation. The relocation is a rename, so at any instant (including
// across a crash) the record exists in exactly one collection. A racing
// mover loses the rename and gets NotFoundError.
//
// The mutation is written after the rename; a crash in between leaves the
// record in the destination with its old fields, never lost or duplicated.
func (s *JobStore) Move(id types.JobID, from, to types.Collection, mutate func(*types.Job)) (*types.Job, error) {
	dst := s.jobPath(to, id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", to, err)
	}
	if err := os.Rename(s.jobPath(from, id), dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("move job %s: %w", id, err)
	}

	job, err := s.readFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read moved job %s: %w", id, err)
	}
	if mutate != nil {
		mutate(job)
	}
	if err := s.write(to, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStore) readFile(path string) (*types.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job types.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// write serializes the job and writes it atomically (temp file + rename).
func (s *JobStore) write(collection types.Collection, job *types.Job) error {
	data, err := yaml.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	dir := s.collectionDir(collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", collection, err)
	}

	path := s.jobPath(collection, job.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp job file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp job file: %w", err)
	}
	return nil
}
