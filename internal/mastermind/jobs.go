package mastermind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const jobsEndpoint = "file_annotations/counts"

// JobState is the server-side state of a file annotation job.
type JobState string

const (
	JobCreated   JobState = "created"
	JobStarted   JobState = "started"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Pending reports whether the job is still waiting for upload or running.
func (s JobState) Pending() bool {
	return s == JobCreated || s == JobStarted
}

// Job is a file annotation job.
type Job struct {
	ID            string   `json:"job_id"`
	State         JobState `json:"state"`
	Assembly      string   `json:"assembly"`
	UploadURL     string   `json:"upload_url"`
	DownloadURL   string   `json:"download_url"`
	InputFilename string   `json:"input_filename"`
	CreatedAt     string   `json:"created_at"`
	JobURL        string   `json:"job_url"`
	Annotated     int      `json:"annotated"`
	Records       int      `json:"records"`
}

// ErrJobFailed is returned by WaitJob when the server reports failure.
var ErrJobFailed = errors.New("mastermind: annotation job failed")

// ValidateJobID checks that id is a UUID as issued by the API.
func ValidateJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	return nil
}

func jobPath(id string) (string, error) {
	if err := ValidateJobID(id); err != nil {
		return "", err
	}
	return jobsEndpoint + "/" + id, nil
}

// CreateJob registers a new annotation job for filename.
func (c *Client) CreateJob(ctx context.Context, filename string) (*Job, error) {
	params := url.Values{
		"assembly": {c.cfg.Assembly.APIName()},
		"filename": {filename},
	}
	var job Job
	if err := c.doJSON(ctx, http.MethodPost, jobsEndpoint, params, &job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := ValidateJobID(job.ID); err != nil {
		return nil, &SchemaError{Endpoint: jobsEndpoint, Msg: "create job", Err: err}
	}
	return &job, nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, id string) (*Job, error) {
	path, err := jobPath(id)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := c.getJSON(ctx, path, nil, &job); err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	return &job, nil
}

// UploadFile PUTs the input file to the job's signed upload URL.
func (c *Client) UploadFile(ctx context.Context, job *Job, r io.Reader, size int64) error {
	if job.UploadURL == "" {
		return errors.New("upload: job has no upload URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, job.UploadURL, r)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}

	// Signed upload URLs can take much longer than an API call.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: "upload", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// WaitJob polls a job every PollInterval until it leaves the pending
// states. onPoll, if non-nil, sees every intermediate status.
func (c *Client) WaitJob(ctx context.Context, id string, onPoll func(*Job)) (*Job, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := c.JobStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(job)
		}
		switch {
		case job.State == JobSucceeded:
			return job, nil
		case job.State == JobFailed:
			return job, fmt.Errorf("%w: job %s", ErrJobFailed, id)
		case !job.State.Pending():
			return job, &SchemaError{Endpoint: jobsEndpoint, Msg: fmt.Sprintf("unknown job state %q", job.State)}
		}

		c.logger.Debug("waiting for annotation job",
			zap.String("job_id", id), zap.String("state", string(job.State)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadJob streams the annotated file of a finished job to w.
func (c *Client) DownloadJob(ctx context.Context, id string, w io.Writer) (int64, error) {
	path, err := jobPath(id)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.do(ctx, http.MethodGet, path+"/download", nil, func(resp *http.Response) error {
		var err error
		n, err = io.Copy(w, resp.Body)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("download job: %w", err)
	}
	return n, nil
}

var vcfSuffix = regexp.MustCompile(`\.vcf(\.gz)?$`)

// AnnotatedPath returns where the annotated output of a job is saved:
// the input path with its .vcf(.gz) suffix replaced by
// .annotated-<job>.vcf.gz.
func AnnotatedPath(input, jobID string) string {
	suffix := ".annotated-" + jobID + ".vcf.gz"
	if vcfSuffix.MatchString(input) {
		return vcfSuffix.ReplaceAllLiteralString(input, suffix)
	}
	return input + suffix
}
