package response

import "time"

type SchedulerStatsResponse struct {
	Running      bool      `json:"running"`
	Runs         int64     `json:"runs"`
	Skipped      int64     `json:"skipped"`
	Expired      int64     `json:"expired"`
	Failed       int64     `json:"failed"`
	LastRunAt    time.Time `json:"last_run_at,omitzero"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}
