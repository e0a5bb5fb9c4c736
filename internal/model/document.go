package model

type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// DocumentFile tracks the sync state of one uploaded file. The blob store
// remains the source of truth for content; this row only carries status.
type DocumentFile struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Filename     string     `json:"filename"`
	Fingerprint  string     `json:"fingerprint"`
	Status       FileStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Ctime        int64      `json:"ctime"`
	Mtime        int64      `json:"mtime"`
}
