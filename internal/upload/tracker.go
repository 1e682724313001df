// Package upload stages documents locally and submits them in one request.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/remote"
)

var (
	ErrSubmitDisabled = errors.New("upload needs a description, at least one file and a resolved room")
	ErrSubmitInFlight = errors.New("an upload is already in progress")
	ErrItemNotFound   = errors.New("upload item not found")
)

// Submitter performs the bulk upload.
type Submitter interface {
	Upload(ctx context.Context, roomID models.RoomID, req remote.UploadRequest) error
}

// RoomSource reports the resolved room.
type RoomSource interface {
	Room() (models.RoomID, bool)
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(key string)
}

// DocumentsKey is the query key of a room's document list.
func DocumentsKey(roomID models.RoomID) string {
	return "documents:" + string(roomID)
}

type staged struct {
	item models.UploadItem
	file FileHandle
}

// Tracker owns the upload queue and the draft metadata.
type Tracker struct {
	api    Submitter
	rooms  RoomSource
	docs   Invalidator
	logger zerolog.Logger

	mu         sync.Mutex
	items      []staged
	meta       models.UploadMetadata
	submitting bool
}

// NewTracker creates an empty tracker.
func NewTracker(api Submitter, rooms RoomSource, docs Invalidator, logger zerolog.Logger) *Tracker {
	return &Tracker{
		api:    api,
		rooms:  rooms,
		docs:   docs,
		logger: logger.With().Str("component", "upload").Logger(),
	}
}

// Add stages files and returns their queue entries.
func (t *Tracker) Add(files ...FileHandle) []models.UploadItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := make([]models.UploadItem, 0, len(files))
	for _, f := range files {
		item := models.UploadItem{
			ID:       ulid.Make().String(),
			Filename: f.Name(),
			Status:   models.UploadQueued,
		}
		t.items = append(t.items, staged{item: item, file: f})
		added = append(added, item)
	}
	metrics.UploadQueueDepth.Set(float64(len(t.items)))
	return added
}

// Remove drops a queued item.
func (t *Tracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.items {
		if s.item.ID != id {
			continue
		}
		if s.item.Status == models.UploadProcessing {
			return ErrSubmitInFlight
		}
		t.items = append(t.items[:i:i], t.items[i+1:]...)
		metrics.UploadQueueDepth.Set(float64(len(t.items)))
		return nil
	}
	return ErrItemNotFound
}

// Items returns a copy of the queue in insertion order.
func (t *Tracker) Items() []models.UploadItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.UploadItem, len(t.items))
	for i, s := range t.items {
		out[i] = s.item
	}
	return out
}

// SetMetadata stores the draft metadata.
func (t *Tracker) SetMetadata(meta models.UploadMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.meta = meta
}

// Metadata returns the draft metadata.
func (t *Tracker) Metadata() models.UploadMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta
}

// CanSubmit reports whether Submit would be attempted with the draft metadata.
func (t *Tracker) CanSubmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rooms.Room()
	return ok && t.canSubmitLocked(t.meta)
}

func (t *Tracker) canSubmitLocked(meta models.UploadMetadata) bool {
	return !t.submitting && !meta.Empty() && len(t.items) > 0
}

// Submit records meta as the draft and uploads every queued item with it.
// On success the submitted items are removed and the draft is reset. On
// failure the queue is restored to its pre-submit state and the draft kept.
func (t *Tracker) Submit(ctx context.Context, meta models.UploadMetadata) error {
	roomID, ok := t.rooms.Room()

	t.mu.Lock()
	t.meta = meta
	if t.submitting {
		t.mu.Unlock()
		return ErrSubmitInFlight
	}
	if !ok || !t.canSubmitLocked(meta) {
		t.mu.Unlock()
		return ErrSubmitDisabled
	}
	t.submitting = true

	snapshot := make(map[string]models.UploadItem, len(t.items))
	req := remote.UploadRequest{FileName: meta.FileName, DocumentType: meta.DocumentType}
	for i := range t.items {
		s := &t.items[i]
		snapshot[s.item.ID] = s.item
		s.item.Status = models.UploadProcessing
		req.Files = append(req.Files, t.uploadFile(s.item.ID, s.file))
	}
	t.mu.Unlock()

	t.logger.Info().Str("room_id", string(roomID)).Int("files", len(req.Files)).Msg("submitting uploads")
	err := t.api.Upload(ctx, roomID, req)

	t.mu.Lock()
	t.submitting = false
	if err != nil {
		for i := range t.items {
			if prev, ok := snapshot[t.items[i].item.ID]; ok {
				t.items[i].item = prev
			}
		}
		t.mu.Unlock()

		metrics.UploadSubmissions.WithLabelValues("error").Inc()
		t.logger.Error().Err(err).Str("room_id", string(roomID)).Msg("upload failed")
		return fmt.Errorf("submit uploads: %w", err)
	}

	kept := t.items[:0]
	for _, s := range t.items {
		if _, sent := snapshot[s.item.ID]; !sent {
			kept = append(kept, s)
		}
	}
	t.items = kept
	t.meta = models.UploadMetadata{}
	metrics.UploadQueueDepth.Set(float64(len(t.items)))
	t.mu.Unlock()

	metrics.UploadSubmissions.WithLabelValues("ok").Inc()
	t.logger.Info().Str("room_id", string(roomID)).Int("files", len(snapshot)).Msg("uploads submitted")
	if t.docs != nil {
		t.docs.Invalidate(DocumentsKey(roomID))
	}
	return nil
}

// uploadFile wraps a handle so reading it advances the item's advisory progress.
func (t *Tracker) uploadFile(id string, f FileHandle) remote.UploadFile {
	size := f.Size()
	return remote.UploadFile{
		Name: f.Name(),
		Open: func() (io.ReadCloser, error) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			return &progressReader{ReadCloser: rc, report: func(read int64) {
				t.setProgress(id, read, size)
			}}, nil
		},
	}
}

func (t *Tracker) setProgress(id string, read, size int64) {
	pct := 100
	if size > 0 && read < size {
		pct = int(read * 100 / size)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].item.ID == id && t.items[i].item.Status == models.UploadProcessing {
			t.items[i].item.Progress = pct
			return
		}
	}
}
