package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"brickshelf/internal/storage"
	"brickshelf/internal/store"
	"brickshelf/internal/usertoken"
	"brickshelf/internal/util"
	"brickshelf/pkg/auth"
	"brickshelf/pkg/domain"
)

// DefaultMaxUploadFiles caps the number of files in one upload request.
const DefaultMaxUploadFiles = 100

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	JWTSecret      string
	SessionTTL     time.Duration
	StorageBackend string
	UploadDir      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
	MaxUploadFiles int

	// Test seams; when nil the real backends are constructed.
	Store  store.Store
	Tokens *usertoken.Service
	Blobs  storage.BlobStore
}

// App wires together credential storage, session tokens, creation records,
// and the photo ingestion pipeline.
type App struct {
	store          store.Store
	tokens         *usertoken.Service
	blobs          storage.BlobStore
	maxUploadFiles int
}

// New constructs the application. Exactly one blob backend is active,
// selected by StorageBackend ("local" or "minio").
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		var err error
		tokens, err = usertoken.New(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("init token service: %w", err)
		}
	}

	blobs := cfg.Blobs
	if blobs == nil {
		var err error
		switch cfg.StorageBackend {
		case "", "local":
			blobs, err = storage.NewLocalStore(cfg.UploadDir)
		case "minio":
			blobs, err = storage.NewMinioStore(
				cfg.MinioEndpoint,
				cfg.MinioAccessKey,
				cfg.MinioSecretKey,
				cfg.MinioBucket,
				cfg.MinioPublicURL,
				cfg.MinioUseSSL,
			)
		default:
			err = fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
		}
		if err != nil {
			return nil, fmt.Errorf("init blob store: %w", err)
		}
	}

	maxFiles := cfg.MaxUploadFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxUploadFiles
	}

	return &App{
		store:          dataStore,
		tokens:         tokens,
		blobs:          blobs,
		maxUploadFiles: maxFiles,
	}, nil
}

// MaxUploadFiles returns the per-request upload file cap.
func (a *App) MaxUploadFiles() int {
	return a.maxUploadFiles
}

// Register creates a user with a salted password hash. The store is the
// sole authority on email uniqueness.
func (a *App) Register(name, email, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrRegistrationRejected
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a signed session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrUserNotFound
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrWrongPassword
	}
	token, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// VerifyToken resolves a session token into a caller identity.
func (a *App) VerifyToken(token string) (domain.Identity, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// UserByID returns the persisted user for a verified identity.
func (a *App) UserByID(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// CreationFields are the client-settable fields of a creation. They are
// copied verbatim; the store's typing is the only validation.
type CreationFields struct {
	Title       string
	Photos      []string
	Description string
	Rating      float64
	LegoFamily  string
}

// CreateCreation persists a new creation owned by the caller.
func (a *App) CreateCreation(ownerID string, fields CreationFields) (domain.Creation, error) {
	now := time.Now().UTC()
	creation := domain.Creation{
		ID:          util.NewID(),
		Owner:       ownerID,
		Title:       fields.Title,
		Photos:      fields.Photos,
		Description: fields.Description,
		Rating:      fields.Rating,
		LegoFamily:  fields.LegoFamily,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveCreation(creation); err != nil {
		return domain.Creation{}, fmt.Errorf("save creation: %w", err)
	}
	return creation, nil
}

// CreationByID returns a creation regardless of caller; single-record reads
// are not ownership-gated.
func (a *App) CreationByID(id string) (domain.Creation, bool, error) {
	return a.store.GetCreation(id)
}

// ListCreations returns every creation.
func (a *App) ListCreations() ([]domain.Creation, error) {
	return a.store.ListCreations()
}

// ListCreationsByOwner returns the caller's creations.
func (a *App) ListCreationsByOwner(ownerID string) ([]domain.Creation, error) {
	return a.store.ListCreationsByOwner(ownerID)
}

// UpdateCreation overwrites the mutable fields after an ownership check.
// On owner mismatch no field is altered. The read-modify-write is not
// wrapped in a transaction; concurrent updates to the same record are
// last-write-wins.
func (a *App) UpdateCreation(id, callerID string, fields CreationFields) (domain.Creation, error) {
	existing, ok, err := a.store.GetCreation(id)
	if err != nil {
		return domain.Creation{}, fmt.Errorf("fetch creation: %w", err)
	}
	if !ok {
		return domain.Creation{}, ErrCreationNotFound
	}
	if existing.Owner != callerID {
		return domain.Creation{}, ErrNotOwner
	}
	existing.Title = fields.Title
	existing.Photos = fields.Photos
	existing.Description = fields.Description
	existing.Rating = fields.Rating
	existing.LegoFamily = fields.LegoFamily
	existing.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveCreation(existing); err != nil {
		return domain.Creation{}, fmt.Errorf("save creation: %w", err)
	}
	return existing, nil
}

// UploadFile is one file of an upload batch. Open is called at most once,
// when the pipeline reaches the file.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// IngestPhotos stores each file and persists a photo record per blob.
// Files are processed sequentially in input order and the returned sequence
// preserves that order. The first failure aborts the rest of the batch;
// already-stored blobs remain in place.
func (a *App) IngestPhotos(ctx context.Context, files []UploadFile) ([]domain.Photo, error) {
	if len(files) > a.maxUploadFiles {
		return nil, ErrTooManyFiles
	}
	photos := make([]domain.Photo, 0, len(files))
	for _, f := range files {
		url, err := a.ingestOne(ctx, f)
		if err != nil {
			util.LoggerFromContext(ctx).Error("photo ingest failed", "filename", f.Filename, "err", err)
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, f.Filename)
		}
		photo := domain.Photo{
			ID:        util.NewID(),
			URL:       url,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.SavePhoto(photo); err != nil {
			util.LoggerFromContext(ctx).Error("photo record save failed", "filename", f.Filename, "err", err)
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, f.Filename)
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

func (a *App) ingestOne(ctx context.Context, f UploadFile) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer r.Close()
	return a.blobs.Put(ctx, f.Filename, f.ContentType, r, f.Size)
}
