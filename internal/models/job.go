/**
 * @description
 * Sync job database model.
 * Maps to the 'sync_jobs' table in PostgreSQL — the durable work queue shared
 * by all worker processes.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 *
 * @notes
 * - While a job is 'processing' no other worker may claim it; claiming is done
 *   with FOR UPDATE SKIP LOCKED so concurrent workers pull disjoint batches.
 * - Permanent failures carry the "permanent:" prefix in last_error so operators
 *   and retry tooling can tell them apart from exhausted transient failures.
 */

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus defines the state of a sync job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// PermanentErrorPrefix marks last_error values that retrying cannot fix
const PermanentErrorPrefix = "permanent: "

// MaxErrorLength bounds how much of an error message is persisted on the job row
const MaxErrorLength = 500

// SyncJob represents one unit of sync work for a (style, provider) key
type SyncJob struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	StyleID  string    `gorm:"column:style_id;not null;index:idx_sync_jobs_key" json:"style_id"`
	Provider Provider  `gorm:"column:provider;type:varchar(16);not null;index:idx_sync_jobs_key" json:"provider"`

	Status      JobStatus `gorm:"column:status;type:varchar(16);default:'pending';index:idx_sync_jobs_status" json:"status"`
	Attempts    int       `gorm:"column:attempts;default:0" json:"attempts"`
	MaxAttempts int       `gorm:"column:max_attempts;default:5" json:"max_attempts"`
	LastError   string    `gorm:"column:last_error" json:"last_error"`

	NextRetryAt time.Time  `gorm:"column:next_retry_at;index" json:"next_retry_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by SyncJob to `sync_jobs`
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// BeforeCreate ensures UUID is generated if not present
func (j *SyncJob) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}

// IsPermanentFailure reports whether the recorded error was marked permanent
func (j *SyncJob) IsPermanentFailure() bool {
	return j.Status == JobStatusFailed && strings.HasPrefix(j.LastError, PermanentErrorPrefix)
}

// TruncateError bounds an error message for storage on the job row
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	return msg[:MaxErrorLength]
}

// QueueStats reports queue depth by status for the health endpoint
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
