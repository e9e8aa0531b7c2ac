package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brickshelf/pkg/domain"
)

// GormStore implements Store using GORM + Postgres. The connection pool is
// opened once at startup and shared by every request.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &CreationModel{}, &PhotoModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser inserts a new user. A unique-index violation surfaces as
// ErrDuplicate; uniqueness is not pre-checked.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveCreation stores or updates a creation.
func (s *GormStore) SaveCreation(c domain.Creation) error {
	model, err := creationToModel(c)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "photos", "description", "rating", "lego_family", "updated_at"}),
	}).Create(&model).Error
}

// GetCreation retrieves a creation by ID.
func (s *GormStore) GetCreation(id string) (domain.Creation, bool, error) {
	var model CreationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Creation{}, false, nil
		}
		return domain.Creation{}, false, err
	}
	c, err := creationFromModel(model)
	if err != nil {
		return domain.Creation{}, false, err
	}
	return c, true, nil
}

// ListCreations returns all creations in insertion order.
func (s *GormStore) ListCreations() ([]domain.Creation, error) {
	return s.listCreations()
}

// ListCreationsByOwner returns creations filtered by owner.
func (s *GormStore) ListCreationsByOwner(ownerID string) ([]domain.Creation, error) {
	return s.listCreations("owner_id = ?", ownerID)
}

func (s *GormStore) listCreations(conds ...any) ([]domain.Creation, error) {
	var models []CreationModel
	tx := s.db.Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Creation, 0, len(models))
	for _, m := range models {
		c, err := creationFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

// SavePhoto records an ingested photo.
func (s *GormStore) SavePhoto(p domain.Photo) error {
	model := photoToModel(p)
	return s.db.Create(&model).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func creationToModel(c domain.Creation) (CreationModel, error) {
	photos := c.Photos
	if photos == nil {
		photos = []string{}
	}
	encoded, err := json.Marshal(photos)
	if err != nil {
		return CreationModel{}, fmt.Errorf("encode photos: %w", err)
	}
	return CreationModel{
		ID:          c.ID,
		OwnerID:     c.Owner,
		Title:       c.Title,
		Photos:      datatypes.JSON(encoded),
		Description: c.Description,
		Rating:      c.Rating,
		LegoFamily:  c.LegoFamily,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

func creationFromModel(m CreationModel) (domain.Creation, error) {
	photos := []string{}
	if len(m.Photos) > 0 {
		if err := json.Unmarshal(m.Photos, &photos); err != nil {
			return domain.Creation{}, fmt.Errorf("decode photos: %w", err)
		}
	}
	return domain.Creation{
		ID:          m.ID,
		Owner:       m.OwnerID,
		Title:       m.Title,
		Photos:      photos,
		Description: m.Description,
		Rating:      m.Rating,
		LegoFamily:  m.LegoFamily,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func photoToModel(p domain.Photo) PhotoModel {
	return PhotoModel{
		ID:        p.ID,
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
	}
}
