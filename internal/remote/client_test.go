package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newFakeService(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", 0)
}

func TestEnsureRoomNumericID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/mytrainingrooms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		w.Write([]byte(`{"data":{"room_id":42}}`))
	})
	c := newFakeService(t, r)

	id, err := c.EnsureRoom(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id != "42" {
		t.Fatalf("expected room 42, got %q", id)
	}
}

func TestEnsureRoomMissingID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/mytrainingrooms/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	})
	c := newFakeService(t, r)

	if _, err := c.EnsureRoom(context.Background()); err == nil {
		t.Fatal("expected error for missing room id")
	}
}

func TestAskSendsPrompt(t *testing.T) {
	var got AskRequest
	r := chi.NewRouter()
	r.Post("/api/v1/mytrainingrooms/{id}/ask/", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "42" {
			t.Errorf("unexpected room %s", chi.URLParam(r, "id"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})
	c := newFakeService(t, r)

	if err := c.Ask(context.Background(), "42", "hello"); err != nil {
		t.Fatal(err)
	}
	if got.Prompt != "hello" {
		t.Fatalf("expected prompt hello, got %q", got.Prompt)
	}
}

func TestUploadMultipart(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/mytrainingrooms/{id}/upload/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("file_name") != "Onboarding" || r.FormValue("document_type") != "policy" {
			t.Errorf("unexpected metadata %v", r.MultipartForm.Value)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 {
			t.Errorf("expected 2 files, got %d", len(files))
			return
		}
		f, _ := files[1].Open()
		data, _ := io.ReadAll(f)
		if files[1].Filename != "b.txt" || string(data) != "bravo" {
			t.Errorf("unexpected second file %s=%q", files[1].Filename, data)
		}
		w.WriteHeader(http.StatusCreated)
	})
	c := newFakeService(t, r)

	open := func(s string) func() (io.ReadCloser, error) {
		return func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(s)), nil }
	}
	err := c.Upload(context.Background(), "42", UploadRequest{
		FileName:     "Onboarding",
		DocumentType: "policy",
		Files: []UploadFile{
			{Name: "a.txt", Open: open("alpha")},
			{Name: "b.txt", Open: open("bravo")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/dislike/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found."}`))
	})
	c := newFakeService(t, r)

	err := c.Dislike(context.Background(), "9")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Not found.") {
		t.Fatalf("expected detail in message, got %q", err.Error())
	}
}

func TestDislikeEscapesID(t *testing.T) {
	var gotPath, gotEscaped, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotEscaped, gotQuery = r.URL.Path, r.URL.EscapedPath(), r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "secret", 0)

	for _, id := range []string{"5?x=1", "a/b", "../mytrainingrooms/42/ask", "9"} {
		if err := c.Dislike(context.Background(), id); err != nil {
			t.Fatalf("Dislike(%q): %v", id, err)
		}
		if gotPath != "/api/v1/dislike/"+id+"/" {
			t.Errorf("Dislike(%q): server saw path %q", id, gotPath)
		}
		if gotEscaped != "/api/v1/dislike/"+url.PathEscape(id)+"/" {
			t.Errorf("Dislike(%q): server saw escaped path %q", id, gotEscaped)
		}
		if gotQuery != "" {
			t.Errorf("Dislike(%q): unexpected query %q", id, gotQuery)
		}
	}
}

func TestDislikeRejectsDotSegments(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "secret", 0)

	for _, id := range []string{"", ".", ".."} {
		if err := c.Dislike(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("Dislike(%q): expected ErrInvalidID, got %v", id, err)
		}
	}
	if calls != 0 {
		t.Fatalf("expected no requests, got %d", calls)
	}
}

func TestRoomPathEscapesID(t *testing.T) {
	if got := roomPath("a/b?c", "ask"); got != "/api/v1/mytrainingrooms/a%2Fb%3Fc/ask/" {
		t.Fatalf("unexpected room path %q", got)
	}
}
