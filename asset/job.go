package asset

import (
	"encoding/json"
	"fmt"
)

// JobName identifies a job kind.
type JobName string

const (
	// JobScanAll enumerates eligible assets and queues one JobScanOne each.
	JobScanAll JobName = "duplicate-detection-queue-all"
	// JobScanOne runs detection for a single asset.
	JobScanOne JobName = "duplicate-detection"
)

// Job is a queued unit of work.
type Job struct {
	Name    JobName `json:"name"`
	AssetID string  `json:"assetId,omitempty"`
	Force   bool    `json:"force,omitempty"`
}

// Key returns a partitioning key for the job: the asset id for per-asset
// jobs, the job name otherwise.
func (j Job) Key() string {
	if j.AssetID != "" {
		return j.AssetID
	}
	return string(j.Name)
}

// Validate checks that the job is well formed.
func (j Job) Validate() error {
	switch j.Name {
	case JobScanAll:
		return nil
	case JobScanOne:
		if j.AssetID == "" {
			return fmt.Errorf("asset: job %s requires an asset id", j.Name)
		}
		return nil
	}
	return fmt.Errorf("asset: unknown job %q", j.Name)
}

// MarshalJob encodes a job for transport.
func MarshalJob(j Job) ([]byte, error) { return json.Marshal(j) }

// UnmarshalJob decodes and validates a transported job.
func UnmarshalJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return j, fmt.Errorf("asset: invalid job payload: %w", err)
	}
	return j, j.Validate()
}

// Status is the terminal status of a job run.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)
