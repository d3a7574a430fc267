package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gatherhq/gather-go/apierror"
	"github.com/gatherhq/gather-go/oauth"
)

// TokenRecord is the relational row behind RecordStore.
type TokenRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Identifier   string `gorm:"uniqueIndex;size:191"`
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       string // JSON array of granted scopes
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// token converts the row back to the client shape. A malformed or empty
// scopes column reads as no scopes, never as an error.
func (r *TokenRecord) token() *oauth.Token {
	scopes := []string{}
	if r.Scopes != "" {
		if err := json.Unmarshal([]byte(r.Scopes), &scopes); err != nil || scopes == nil {
			scopes = []string{}
		}
	}
	return &oauth.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Scopes:       scopes,
		ExpiresAt:    r.ExpiresAt,
	}
}

// RecordStore persists tokens in a relational database through gorm, one row
// per identifier with find-or-create semantics.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore wraps an open gorm handle. Run Migrate once before first
// use.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Migrate creates or updates the token table.
func (s *RecordStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&TokenRecord{}); err != nil {
		return apierror.Wrap(apierror.KindStorage, "migrating token records", err)
	}
	return nil
}

// Store implements Store.Store.
func (s *RecordStore) Store(ctx context.Context, identifier string, token *oauth.Token) error {
	if err := validate(token); err != nil {
		return err
	}
	return s.upsert(ctx, identifier, token)
}

// Retrieve implements Store.Retrieve.
func (s *RecordStore) Retrieve(ctx context.Context, identifier string) (*oauth.Token, error) {
	var row TokenRecord
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.KindStorage, "loading token record", err)
	}
	return row.token(), nil
}

// Refresh implements Store.Refresh.
func (s *RecordStore) Refresh(ctx context.Context, identifier string, token *oauth.Token) error {
	existing, err := s.Retrieve(ctx, identifier)
	if err != nil {
		return err
	}

	merged := merge(existing, token)
	if err := validate(merged); err != nil {
		return err
	}
	return s.upsert(ctx, identifier, merged)
}

// Delete implements Store.Delete.
func (s *RecordStore) Delete(ctx context.Context, identifier string) error {
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&TokenRecord{}).Error
	if err != nil {
		return apierror.Wrap(apierror.KindStorage, "deleting token record", err)
	}
	return nil
}

// Available reports whether the database answers a ping.
func (s *RecordStore) Available(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (s *RecordStore) upsert(ctx context.Context, identifier string, token *oauth.Token) error {
	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return apierror.Wrap(apierror.KindStorage, "serializing scopes", err)
	}

	db := s.db.WithContext(ctx)

	var row TokenRecord
	err = db.Where("identifier = ?", identifier).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.Wrap(apierror.KindStorage, "loading token record", err)
	}

	row.Identifier = identifier
	row.AccessToken = token.AccessToken
	row.RefreshToken = token.RefreshToken
	row.TokenType = token.TokenType
	row.Scopes = string(scopes)
	row.ExpiresAt = token.ExpiresAt

	if err := db.Save(&row).Error; err != nil {
		return apierror.Wrap(apierror.KindStorage, "saving token record", err)
	}
	return nil
}
