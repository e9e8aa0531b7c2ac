package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"brickshelf/internal/storage"
	"brickshelf/internal/store"
	"brickshelf/internal/usertoken"
)

func newTestApp(t *testing.T, blobs storage.BlobStore) *App {
	t.Helper()
	tokens, err := usertoken.New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	if blobs == nil {
		blobs, err = storage.NewLocalStore(t.TempDir())
		if err != nil {
			t.Fatalf("new local store: %v", err)
		}
	}
	a, err := New(Config{
		Store:  store.NewMemoryStore(),
		Tokens: tokens,
		Blobs:  blobs,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func openString(s string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	a := newTestApp(t, nil)
	user, err := a.Register("Ann", "Ann@X.com", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated user id")
	}
	if user.Email != "ann@x.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	loggedIn, token, err := a.Login("ann@x.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned wrong user: %q != %q", loggedIn.ID, user.ID)
	}
	identity, err := a.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.UserID != user.ID || identity.Email != user.Email {
		t.Fatalf("token claims mismatch: %+v", identity)
	}
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	a := newTestApp(t, nil)
	if _, err := a.Register("Ann", "ann@x.com", "secret"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := a.Register("Imposter", "ann@x.com", "other"); !errors.Is(err, ErrRegistrationRejected) {
		t.Fatalf("expected ErrRegistrationRejected, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	a := newTestApp(t, nil)
	if _, _, err := a.Login("nobody@x.com", "secret"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := a.Register("Ann", "ann@x.com", "secret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := a.Login("ann@x.com", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestUpdateCreationOwnershipGate(t *testing.T) {
	a := newTestApp(t, nil)
	ann, err := a.Register("Ann", "ann@x.com", "secret")
	if err != nil {
		t.Fatalf("register ann: %v", err)
	}
	bob, err := a.Register("Bob", "bob@x.com", "secret")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	created, err := a.CreateCreation(ann.ID, CreationFields{Title: "Castle", Rating: 4})
	if err != nil {
		t.Fatalf("create creation: %v", err)
	}
	if created.Owner != ann.ID {
		t.Fatalf("owner not forced to caller: %q", created.Owner)
	}

	if _, err := a.UpdateCreation(created.ID, bob.ID, CreationFields{Title: "Castle2"}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	after, ok, err := a.CreationByID(created.ID)
	if err != nil || !ok {
		t.Fatalf("fetch after denied update: ok=%v err=%v", ok, err)
	}
	if after.Title != "Castle" || after.Rating != 4 {
		t.Fatalf("denied update altered fields: %+v", after)
	}

	updated, err := a.UpdateCreation(created.ID, ann.ID, CreationFields{Title: "Castle2", Rating: 5})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Castle2" || updated.Rating != 5 {
		t.Fatalf("owner update not applied: %+v", updated)
	}
	if updated.Owner != ann.ID {
		t.Fatalf("owner must not change on update: %q", updated.Owner)
	}
}

func TestUpdateCreationUnknownID(t *testing.T) {
	a := newTestApp(t, nil)
	if _, err := a.UpdateCreation("missing", "u1", CreationFields{}); !errors.Is(err, ErrCreationNotFound) {
		t.Fatalf("expected ErrCreationNotFound, got %v", err)
	}
}

func TestIngestPhotosPreservesOrder(t *testing.T) {
	a := newTestApp(t, nil)
	files := []UploadFile{
		{Filename: "a.png", ContentType: "image/png", Size: 1, Open: openString("a")},
		{Filename: "b.png", ContentType: "image/png", Size: 1, Open: openString("b")},
		{Filename: "c.png", ContentType: "image/png", Size: 1, Open: openString("c")},
	}
	photos, err := a.IngestPhotos(context.Background(), files)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(photos))
	}
	for i, base := range []string{"a.png", "b.png", "c.png"} {
		if !strings.HasSuffix(photos[i].URL, base) {
			t.Fatalf("order not preserved at %d: %q", i, photos[i].URL)
		}
		if photos[i].ID == "" {
			t.Fatalf("photo %d missing id", i)
		}
	}
}

func TestIngestPhotosRejectsOverLimit(t *testing.T) {
	a := newTestApp(t, nil)
	files := make([]UploadFile, DefaultMaxUploadFiles+1)
	for i := range files {
		files[i] = UploadFile{Filename: fmt.Sprintf("%d.png", i), Size: 1, Open: openString("x")}
	}
	if _, err := a.IngestPhotos(context.Background(), files); !errors.Is(err, ErrTooManyFiles) {
		t.Fatalf("expected ErrTooManyFiles, got %v", err)
	}
}

type failingBlobStore struct {
	failAfter int
	calls     int
}

func (f *failingBlobStore) Put(_ context.Context, filename, _ string, _ io.Reader, _ int64) (string, error) {
	f.calls++
	if f.calls > f.failAfter {
		return "", errors.New("disk full")
	}
	return "/uploads/" + filename, nil
}

func TestIngestPhotosAbortsBatchOnFailure(t *testing.T) {
	blobs := &failingBlobStore{failAfter: 1}
	a := newTestApp(t, blobs)
	files := []UploadFile{
		{Filename: "a.png", Size: 1, Open: openString("a")},
		{Filename: "b.png", Size: 1, Open: openString("b")},
		{Filename: "c.png", Size: 1, Open: openString("c")},
	}
	if _, err := a.IngestPhotos(context.Background(), files); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if blobs.calls != 2 {
		t.Fatalf("expected batch to abort after the failing file, got %d calls", blobs.calls)
	}
}
