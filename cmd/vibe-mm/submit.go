package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/duckdb"
	"github.com/inodb/vibe-mm/internal/mastermind"
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <input.vcf.gz> [job-id]",
		Short: "Annotate a whole file with the Mastermind file annotation service",
		Long: `Create a server-side annotation job, upload the file, wait for the job
to finish and download the annotated file next to the input as
<name>.annotated-<job-id>.vcf.gz.

Pass a job ID to continue an earlier job. Without one, an unfinished job
recorded in the local cache for the same unchanged file is resumed.`,
		Example: `  vibe-mm submit sample.vcf.gz
  vibe-mm submit sample.vcf.gz 8a6830ab-2051-409c-b7d3-ad609bc70d49`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(cmd, map[string]string{
				"cache":         "cache",
				"no_cache":      "no-cache",
				"poll_interval": "poll-interval",
			})
			if len(args) == 2 {
				if err := mastermind.ValidateJobID(args[1]); err != nil {
					return &usageError{err}
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobID string
			if len(args) == 2 {
				jobID = args[1]
			}
			return runSubmit(cmd.Context(), args[0], jobID)
		},
	}

	f := cmd.Flags()
	f.String("cache", DefaultCachePath(), "DuckDB database recording submitted jobs")
	f.Bool("no-cache", false, "Do not record or resume jobs")
	f.Duration("poll-interval", mastermind.DefaultPollInterval, "Interval between job status checks")

	return cmd
}

func runSubmit(ctx context.Context, inputPath, jobID string) error {
	s, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := newClient(s, logger)
	if err != nil {
		return err
	}

	fp, err := duckdb.StatFile(inputPath)
	if err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	store, err := openStore(s, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	record := func(job *mastermind.Job) {
		if store == nil {
			return
		}
		if err := store.SaveJob(fp, job.ID, string(job.State)); err != nil {
			logger.Warn("could not record job state", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	if jobID == "" && store != nil {
		rec, found, err := store.FindJob(fp)
		if err != nil {
			return err
		}
		if found && rec.State != string(mastermind.JobFailed) {
			jobID = rec.JobID
			logger.Info("resuming recorded job", zap.String("job_id", jobID), zap.String("state", rec.State))
		}
	}

	var job *mastermind.Job
	if jobID != "" {
		fmt.Fprintln(os.Stderr, "Continuing job")
		job, err = client.JobStatus(ctx, jobID)
	} else {
		fmt.Fprintf(os.Stderr, "Creating file annotation job for file: %s\n", filepath.Base(inputPath))
		job, err = client.CreateJob(ctx, filepath.Base(inputPath))
	}
	if err != nil {
		return err
	}
	record(job)
	fmt.Fprintf(os.Stderr, "Job ID: %s\n", job.ID)

	if job.State == mastermind.JobCreated {
		fmt.Fprintln(os.Stderr, "Uploading file...")
		if err := uploadFile(ctx, client, job, inputPath); err != nil {
			return err
		}
	}

	if job.State.Pending() {
		fmt.Fprintln(os.Stderr, "Waiting for processing success...")
		id := job.ID
		job, err = client.WaitJob(ctx, id, record)
		if errors.Is(err, mastermind.ErrJobFailed) {
			return fmt.Errorf("there was an error processing the file for job ID %s", id)
		}
		if err != nil {
			return err
		}
	}

	if job.State != mastermind.JobSucceeded {
		return fmt.Errorf("job %s ended in state %q", job.ID, job.State)
	}
	fmt.Fprintf(os.Stderr, "Successfully annotated. %d out of %d have annotations.\n", job.Annotated, job.Records)

	outputPath := mastermind.AnnotatedPath(inputPath, job.ID)
	fmt.Fprintf(os.Stderr, "Downloading annotated file to %s\n", outputPath)
	if err := downloadResult(ctx, client, job.ID, outputPath); err != nil {
		return err
	}
	return nil
}

func uploadFile(ctx context.Context, client *mastermind.Client, job *mastermind.Job, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	return client.UploadFile(ctx, job, f, info.Size())
}

// downloadResult downloads the annotated file to a temporary path and
// renames it into place once complete.
func downloadResult(ctx context.Context, client *mastermind.Client, jobID, destPath string) error {
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{downloaded: &downloaded, lastPrint: time.Now()}

	_, err = client.DownloadJob(ctx, jobID, io.MultiWriter(f, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "    Done: %s\n", formatSize(downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	// Print progress every second
	if time.Since(pw.lastPrint) > time.Second {
		fmt.Fprintf(os.Stderr, "\r    Progress: %s  ", formatSize(*pw.downloaded))
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
