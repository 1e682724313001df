package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/remote"
)

type staticRoom models.RoomID

func (r staticRoom) Room() (models.RoomID, bool) {
	return models.RoomID(r), r != ""
}

type fakeSubmitter struct {
	reqs   []remote.UploadRequest
	bodies [][]string
	err    error
	during func()
}

func (f *fakeSubmitter) Upload(ctx context.Context, roomID models.RoomID, req remote.UploadRequest) error {
	f.reqs = append(f.reqs, req)
	var bodies []string
	for _, file := range req.Files {
		rc, err := file.Open()
		if err != nil {
			return err
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		bodies = append(bodies, string(data))
	}
	f.bodies = append(f.bodies, bodies)
	if f.during != nil {
		f.during()
	}
	return f.err
}

type fakeInvalidator struct{ keys []string }

func (f *fakeInvalidator) Invalidate(key string) { f.keys = append(f.keys, key) }

var meta = models.UploadMetadata{FileName: "Onboarding pack", DocumentType: "policy"}

func newTestTracker(room string, api Submitter, docs Invalidator) *Tracker {
	return NewTracker(api, staticRoom(room), docs, zerolog.Nop())
}

func TestAddAndRemove(t *testing.T) {
	tr := newTestTracker("42", &fakeSubmitter{}, nil)

	added := tr.Add(Bytes{Filename: "f1.pdf", Data: []byte("one")}, Bytes{Filename: "f2.pdf", Data: []byte("two")})
	if len(added) != 2 || added[0].ID == added[1].ID {
		t.Fatalf("expected two distinct items, got %+v", added)
	}
	if added[0].ID >= added[1].ID {
		t.Fatalf("expected monotonic ids, got %s then %s", added[0].ID, added[1].ID)
	}
	if added[0].Status != models.UploadQueued {
		t.Fatalf("expected queued, got %s", added[0].Status)
	}

	if err := tr.Remove(added[0].ID); err != nil {
		t.Fatal(err)
	}
	items := tr.Items()
	if len(items) != 1 || items[0].ID != added[1].ID {
		t.Fatalf("expected only f2 to remain, got %+v", items)
	}

	if err := tr.Remove("nope"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSubmitSuccessClearsQueue(t *testing.T) {
	api := &fakeSubmitter{}
	docs := &fakeInvalidator{}
	tr := newTestTracker("42", api, docs)

	tr.Add(Bytes{Filename: "a.txt", Data: []byte("alpha")}, Bytes{Filename: "b.txt", Data: []byte("bravo")})
	if err := tr.Submit(context.Background(), meta); err != nil {
		t.Fatal(err)
	}

	if len(tr.Items()) != 0 {
		t.Fatalf("expected empty queue, got %+v", tr.Items())
	}
	if tr.Metadata() != (models.UploadMetadata{}) {
		t.Fatalf("expected metadata reset, got %+v", tr.Metadata())
	}
	req := api.reqs[0]
	if req.FileName != meta.FileName || req.DocumentType != meta.DocumentType {
		t.Fatalf("unexpected metadata in request %+v", req)
	}
	if !reflect.DeepEqual(api.bodies[0], []string{"alpha", "bravo"}) {
		t.Fatalf("unexpected file bodies %v", api.bodies[0])
	}
	if !reflect.DeepEqual(docs.keys, []string{"documents:42"}) {
		t.Fatalf("expected document list invalidated, got %v", docs.keys)
	}
}

func TestSubmitFailureLeavesQueueUntouched(t *testing.T) {
	api := &fakeSubmitter{err: errors.New("413 too large")}
	docs := &fakeInvalidator{}
	tr := newTestTracker("42", api, docs)

	tr.Add(Bytes{Filename: "a.txt", Data: []byte("alpha")}, Bytes{Filename: "b.txt", Data: []byte("bravo")})
	before := tr.Items()

	if err := tr.Submit(context.Background(), meta); err == nil {
		t.Fatal("expected error")
	}

	if !reflect.DeepEqual(tr.Items(), before) {
		t.Fatalf("queue changed: %+v vs %+v", tr.Items(), before)
	}
	if tr.Metadata() != meta {
		t.Fatalf("expected metadata kept, got %+v", tr.Metadata())
	}
	if len(docs.keys) != 0 {
		t.Fatal("document list must not be invalidated on failure")
	}

	// Retry works with the same queue.
	api.err = nil
	if err := tr.Submit(context.Background(), meta); err != nil {
		t.Fatal(err)
	}
	if len(tr.Items()) != 0 {
		t.Fatal("expected queue cleared after retry")
	}
}

func TestSubmitDisabled(t *testing.T) {
	api := &fakeSubmitter{}

	empty := newTestTracker("42", api, nil)
	if err := empty.Submit(context.Background(), meta); !errors.Is(err, ErrSubmitDisabled) {
		t.Fatalf("expected disabled without files, got %v", err)
	}

	noMeta := newTestTracker("42", api, nil)
	noMeta.Add(Bytes{Filename: "a.txt"})
	if err := noMeta.Submit(context.Background(), models.UploadMetadata{}); !errors.Is(err, ErrSubmitDisabled) {
		t.Fatalf("expected disabled without metadata, got %v", err)
	}

	noRoom := newTestTracker("", api, nil)
	noRoom.Add(Bytes{Filename: "a.txt"})
	noRoom.SetMetadata(meta)
	if noRoom.CanSubmit() {
		t.Fatal("CanSubmit must be false without a room")
	}
	if err := noRoom.Submit(context.Background(), meta); !errors.Is(err, ErrSubmitDisabled) {
		t.Fatalf("expected disabled without room, got %v", err)
	}

	if len(api.reqs) != 0 {
		t.Fatal("nothing should have been sent")
	}

	partial := newTestTracker("42", api, nil)
	partial.Add(Bytes{Filename: "a.txt"})
	partial.SetMetadata(models.UploadMetadata{DocumentType: "policy"})
	if !partial.CanSubmit() {
		t.Fatal("one descriptive field should be enough")
	}
}

func TestSubmitMarksProcessingAndProgress(t *testing.T) {
	api := &fakeSubmitter{}
	tr := newTestTracker("42", api, nil)
	tr.Add(Bytes{Filename: "a.txt", Data: []byte("alpha")})

	api.during = func() {
		items := tr.Items()
		if items[0].Status != models.UploadProcessing || items[0].Progress != 100 {
			t.Errorf("expected processing at 100%%, got %+v", items[0])
		}
		if err := tr.Remove(items[0].ID); !errors.Is(err, ErrSubmitInFlight) {
			t.Errorf("expected in-flight item to be locked, got %v", err)
		}
		if err := tr.Submit(context.Background(), meta); !errors.Is(err, ErrSubmitInFlight) {
			t.Errorf("expected concurrent submit rejected, got %v", err)
		}
	}
	if err := tr.Submit(context.Background(), meta); err != nil {
		t.Fatal(err)
	}
}

func TestItemsAddedDuringSubmitSurvive(t *testing.T) {
	api := &fakeSubmitter{}
	tr := newTestTracker("42", api, nil)
	tr.Add(Bytes{Filename: "a.txt"})

	var late models.UploadItem
	api.during = func() {
		late = tr.Add(Bytes{Filename: "late.txt"})[0]
	}
	if err := tr.Submit(context.Background(), meta); err != nil {
		t.Fatal(err)
	}

	items := tr.Items()
	if len(items) != 1 || items[0].ID != late.ID || items[0].Status != models.UploadQueued {
		t.Fatalf("expected late item to remain queued, got %+v", items)
	}
}

func TestDiskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	os.WriteFile(path, []byte("name,shift\n"), 0600)

	f, err := NewDiskFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name() != "roster.csv" || f.Size() != 11 {
		t.Fatalf("unexpected handle %s/%d", f.Name(), f.Size())
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "name,shift\n" {
		t.Fatalf("unexpected contents %q", data)
	}
}
