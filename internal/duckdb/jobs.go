package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. The path is
// made absolute so the same file matches from any working directory.
func StatFile(path string) (FileFingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// JobRecord is the locally remembered state of a server-side job.
type JobRecord struct {
	File      FileFingerprint
	JobID     string
	State     string
	UpdatedAt time.Time
}

// SaveJob records the job submitted for a file, replacing any earlier one.
func (s *Store) SaveJob(fp FileFingerprint, jobID, state string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO annotation_jobs VALUES (?, ?, ?, ?, ?, ?)`,
		fp.Path, fp.Size, fp.ModTime.UnixNano(), jobID, state, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save job %s: %w", jobID, err)
	}
	return nil
}

// FindJob returns the job recorded for fp. A record for the same path
// whose size or modification time differ is stale and not returned.
func (s *Store) FindJob(fp FileFingerprint) (JobRecord, bool, error) {
	var (
		rec       JobRecord
		modTimeNs int64
	)
	err := s.db.QueryRow(`SELECT path, size, mod_time_ns, job_id, state, updated_at
		FROM annotation_jobs WHERE path = ?`, fp.Path).
		Scan(&rec.File.Path, &rec.File.Size, &modTimeNs, &rec.JobID, &rec.State, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, false, nil
	}
	if err != nil {
		return JobRecord{}, false, fmt.Errorf("find job: %w", err)
	}
	rec.File.ModTime = time.Unix(0, modTimeNs)

	if rec.File.Size != fp.Size || modTimeNs != fp.ModTime.UnixNano() {
		return JobRecord{}, false, nil
	}
	return rec, true, nil
}

// DeleteJob forgets the job recorded for path.
func (s *Store) DeleteJob(path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM annotation_jobs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// ClearJobs forgets all recorded jobs.
func (s *Store) ClearJobs() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM annotation_jobs`); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	return nil
}
