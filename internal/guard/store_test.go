package guard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/models"
)

// exerciseStore checks the contract every marker backend must honour.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "guard:test:" + time.Now().Format("150405.000000000")

	if st, err := s.Get(ctx, key); err != nil || st != models.GuardAbsent {
		t.Fatalf("Get(missing) = %q, %v", st, err)
	}

	ok, err := s.SetIfAbsent(ctx, key, models.GuardProcessing)
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent = %v, %v", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, key, models.GuardProcessing)
	if err != nil || ok {
		t.Fatalf("second SetIfAbsent = %v, %v", ok, err)
	}

	if err := s.Set(ctx, key, models.GuardDone); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, key); st != models.GuardDone {
		t.Fatalf("expected done, got %q", st)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, key); st != models.GuardAbsent {
		t.Fatalf("expected absent after delete, got %q", st)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.db")
	s, err := NewSQLiteStore(context.Background(), path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

// clock is a settable time source for expiry tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// exerciseExpiry checks that a marker older than the ttl reads as absent and
// can be claimed again, while a live one cannot.
func exerciseExpiry(t *testing.T, s Store, c *clock, ttl time.Duration) {
	t.Helper()
	ctx := context.Background()
	key := "guard:dislike:" + time.Now().Format("150405.000000000")

	if ok, err := s.SetIfAbsent(ctx, key, models.GuardProcessing); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}

	c.t = c.t.Add(ttl / 2)
	if st, _ := s.Get(ctx, key); st != models.GuardProcessing {
		t.Fatalf("expected live marker, got %q", st)
	}
	if ok, _ := s.SetIfAbsent(ctx, key, models.GuardProcessing); ok {
		t.Fatal("live marker must not be claimed again")
	}

	c.t = c.t.Add(ttl)
	if st, _ := s.Get(ctx, key); st != models.GuardAbsent {
		t.Fatalf("expected expired marker to read absent, got %q", st)
	}
	if ok, err := s.SetIfAbsent(ctx, key, models.GuardProcessing); err != nil || !ok {
		t.Fatalf("expired marker claim = %v, %v", ok, err)
	}
	if ok, _ := s.SetIfAbsent(ctx, key, models.GuardProcessing); ok {
		t.Fatal("fresh claim must block another")
	}
}

func TestSQLiteStoreMarkerExpires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.db")
	s, err := NewSQLiteStore(context.Background(), path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.now = c.now
	exerciseExpiry(t, s, c, time.Hour)
}

func TestSQLiteStoreStaleProcessingRetriesNextSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "guard.db")
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	// A console that died mid-effect leaves "processing" behind.
	s, err := NewSQLiteStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.now = c.now
	if ok, err := s.SetIfAbsent(ctx, "guard:dislike:9", models.GuardProcessing); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}
	s.Close()

	c.t = c.t.Add(2 * time.Hour)
	s, err = NewSQLiteStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.now = c.now

	g := New(s, "dislike", zerolog.Nop())
	runs := 0
	outcome, err := g.RunOnce(ctx, "9", func(ctx context.Context) error {
		runs++
		return nil
	})
	if err != nil || outcome != OutcomeExecuted || runs != 1 {
		t.Fatalf("RunOnce = %s, %v, runs=%d", outcome, err, runs)
	}
	if st, _ := g.State(ctx, "9"); st != models.GuardDone {
		t.Fatalf("expected done, got %q", st)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)

	c := &clock{t: time.Now()}
	s.now = c.now
	exerciseExpiry(t, s, c, time.Hour)
}
