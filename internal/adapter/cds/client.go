// Package cds retrieves ERA5 extracts from the Copernicus Climate Data Store.
// A retrieval submits a job, polls it until it finishes, then downloads the
// result into the data directory. Downloads are cached by file name.
package cds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-wind-hexmap/internal/config"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

// ErrNoAPIKey is returned when a download is needed but no key is configured.
var ErrNoAPIKey = errors.New("cds: CDS_KEY is not set")

// ErrJobFailed is returned when the data store reports a terminal failure.
var ErrJobFailed = errors.New("cds: job failed")

const (
	statusAccepted   = "accepted"
	statusRunning    = "running"
	statusSuccessful = "successful"
)

// Client implements the pipeline Retriever against the CDS retrieve API.
type Client struct {
	http         *resty.Client
	apiKey       string
	dataDir      string
	pollInterval time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a CDS client from the service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return newClient(cfg.CDSURL, cfg.CDSKey, cfg.DataDir, cfg.CDSTimeout, cfg.CDSPollInterval, clockwork.NewRealClock(), metrics, logger)
}

func newClient(baseURL, apiKey, dataDir string, timeout, poll time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(retryIdempotent).
		SetHeader("Accept", "application/json")
	return &Client{
		http:         hc,
		apiKey:       apiKey,
		dataDir:      dataDir,
		pollInterval: poll,
		clock:        clock,
		metrics:      metrics,
		logger:       logger,
	}
}

// retryIdempotent retries GETs on transport errors, throttling and server
// errors. A retried submit could start a second job, so POSTs are never retried.
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
}

// api starts an authenticated request against the CDS API. The key is set per
// request so it never reaches the download host.
func (c *Client) api(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("PRIVATE-TOKEN", c.apiKey)
}

// Retrieve returns the path of a local NetCDF file holding the requested
// extract, downloading it first when it is not already in the data directory.
func (c *Client) Retrieve(ctx context.Context, req domain.RetrievalRequest) (string, error) {
	path := filepath.Join(c.dataDir, req.FileName)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		c.metrics.RetrievalCache.WithLabelValues("hit").Inc()
		c.logger.Debug("cds file cache hit", "file", req.FileName)
		return path, nil
	}
	c.metrics.RetrievalCache.WithLabelValues("miss").Inc()

	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	start := c.clock.Now()
	err := c.retrieve(ctx, req, path)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RetrievalDuration.WithLabelValues(outcome).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	c.logger.Info("cds download complete", "file", req.FileName, "duration", c.clock.Since(start))
	return path, nil
}

func (c *Client) retrieve(ctx context.Context, req domain.RetrievalRequest, path string) error {
	job, err := c.submit(ctx, req)
	if err != nil {
		return err
	}
	c.logger.Info("cds job submitted", "job_id", job.JobID, "dataset", req.Dataset, "file", req.FileName)

	if err := c.wait(ctx, job); err != nil {
		return err
	}

	href, err := c.resultURL(ctx, job.JobID)
	if err != nil {
		return err
	}
	return c.download(ctx, href, path)
}

func (c *Client) submit(ctx context.Context, req domain.RetrievalRequest) (jobStatus, error) {
	var job jobStatus
	var apiErr apiError
	resp, err := c.api(ctx).
		SetPathParam("dataset", req.Dataset).
		SetBody(executeRequest{Inputs: req}).
		SetResult(&job).
		SetError(&apiErr).
		Post("/retrieve/v1/processes/{dataset}/execution")
	if err != nil {
		return jobStatus{}, fmt.Errorf("cds submit: %w", err)
	}
	if resp.IsError() {
		return jobStatus{}, fmt.Errorf("cds submit: status %d: %s", resp.StatusCode(), apiErr)
	}
	if job.JobID == "" {
		return jobStatus{}, errors.New("cds submit: response has no job id")
	}
	return job, nil
}

// wait polls the job until it succeeds, fails, or ctx ends.
func (c *Client) wait(ctx context.Context, job jobStatus) error {
	for {
		switch job.Status {
		case statusSuccessful:
			return nil
		case statusAccepted, statusRunning, "":
		default:
			return fmt.Errorf("%w: job %s is %s", ErrJobFailed, job.JobID, job.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}

		next, err := c.status(ctx, job.JobID)
		if err != nil {
			return err
		}
		if next.Status != job.Status {
			c.logger.Debug("cds job status", "job_id", job.JobID, "status", next.Status)
		}
		job = next
	}
}

func (c *Client) status(ctx context.Context, id string) (jobStatus, error) {
	var job jobStatus
	var apiErr apiError
	resp, err := c.api(ctx).
		SetPathParam("id", id).
		SetResult(&job).
		SetError(&apiErr).
		Get("/retrieve/v1/jobs/{id}")
	if err != nil {
		return jobStatus{}, fmt.Errorf("cds status: %w", err)
	}
	if resp.IsError() {
		return jobStatus{}, fmt.Errorf("cds status: status %d: %s", resp.StatusCode(), apiErr)
	}
	if job.JobID == "" {
		job.JobID = id
	}
	return job, nil
}

func (c *Client) resultURL(ctx context.Context, id string) (string, error) {
	var res jobResults
	var apiErr apiError
	resp, err := c.api(ctx).
		SetPathParam("id", id).
		SetResult(&res).
		SetError(&apiErr).
		Get("/retrieve/v1/jobs/{id}/results")
	if err != nil {
		return "", fmt.Errorf("cds results: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("cds results: status %d: %s", resp.StatusCode(), apiErr)
	}
	if res.Asset.Value.Href == "" {
		return "", errors.New("cds results: no download link")
	}
	return res.Asset.Value.Href, nil
}

// download streams href into a temporary file next to path and renames it
// into place, so a partial download never looks like a cached file.
func (c *Client) download(ctx context.Context, href, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cds download: %w", err)
	}
	tmp := path + ".part"
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/octet-stream").
		SetOutput(tmp).
		Get(href)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cds download: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		_ = os.Remove(tmp)
		return fmt.Errorf("cds download: status %d", resp.StatusCode())
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cds download: %w", err)
	}
	return nil
}

// CDS API payloads.

type executeRequest struct {
	Inputs domain.RetrievalRequest `json:"inputs"`
}

type jobStatus struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
}

type jobResults struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Type string `json:"type"`
		} `json:"value"`
	} `json:"asset"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e apiError) String() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return "no detail"
	}
}
