package models

// UploadStatus is the lifecycle status of a staged file.
type UploadStatus string

const (
	UploadQueued     UploadStatus = "queued"
	UploadProcessing UploadStatus = "processing"
	UploadFailed     UploadStatus = "failed" // reserved for transport-level failure reporting
)

// UploadItem is a file staged for bulk submission.
type UploadItem struct {
	ID       string       `json:"id"` // ULID, monotonic within the process
	Filename string       `json:"filename"`
	Status   UploadStatus `json:"status"`
	Progress int          `json:"progress"` // 0-100, advisory
}

// UploadMetadata holds the descriptive fields sent with a bulk submission.
type UploadMetadata struct {
	FileName     string `json:"file_name"`
	DocumentType string `json:"document_type"`
}

// Empty reports whether no descriptive field has been filled in.
func (m UploadMetadata) Empty() bool {
	return m.FileName == "" && m.DocumentType == ""
}
