package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dealflow/platform-server-go/internal/model"
	"github.com/dealflow/platform-server-go/internal/util"
)

type IntegrationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Integration, error)
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Integration, error)
	FindByTriple(ctx context.Context, userID, provider, capability string) (*model.Integration, error)
	Upsert(ctx context.Context, params model.UpsertIntegrationParams) (*model.Integration, error)
	UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt time.Time) error
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*model.Integration, error)
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
}

type integrationRepo struct {
	db *sqlx.DB

	// encryptionKey, when set, encrypts token columns at rest (AES-256-GCM,
	// hex-encoded 32-byte key). Empty key stores tokens as-is.
	encryptionKey string
}

func NewIntegrationRepository(db *sqlx.DB, encryptionKey string) IntegrationRepository {
	return &integrationRepo{db: db, encryptionKey: encryptionKey}
}

func (r *integrationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Integration, error) {
	var records []*model.Integration
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM integrations
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(records)
}

func (r *integrationRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Integration, error) {
	var record model.Integration
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM integrations
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	record2, err := HandleNotFound(&record, err)
	if record2 == nil || err != nil {
		return record2, err
	}
	return r.decode(record2)
}

func (r *integrationRepo) FindByTriple(ctx context.Context, userID, provider, capability string) (*model.Integration, error) {
	var record model.Integration
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM integrations
		WHERE user_id = $1 AND provider = $2 AND capability = $3 AND is_active = TRUE
	`, userID, provider, capability)
	record2, err := HandleNotFound(&record, err)
	if record2 == nil || err != nil {
		return record2, err
	}
	return r.decode(record2)
}

// Upsert creates the integration record or, when an active record already
// exists for the same (user, provider, capability), replaces its tokens,
// scopes, and profile snapshot. Exactly one active row per triple survives.
func (r *integrationRepo) Upsert(ctx context.Context, params model.UpsertIntegrationParams) (*model.Integration, error) {
	accessToken, err := r.encode(params.AccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := r.encodeOptional(params.RefreshToken)
	if err != nil {
		return nil, err
	}

	var record model.Integration
	err = r.db.GetContext(ctx, &record, `
		INSERT INTO integrations (
			id, user_id, provider, capability,
			access_token, refresh_token, token_expires_at, scopes,
			display_name, email, avatar_url, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		ON CONFLICT (user_id, provider, capability) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING *
	`, uuid.NewString(), params.UserID, params.Provider, params.Capability,
		accessToken, refreshToken, params.TokenExpiresAt, pq.StringArray(params.Scopes),
		params.DisplayName, params.Email, params.AvatarURL)
	if err != nil {
		return nil, err
	}
	return r.decode(&record)
}

func (r *integrationRepo) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt time.Time) error {
	encAccess, err := r.encode(accessToken)
	if err != nil {
		return err
	}
	encRefresh, err := r.encodeOptional(refreshToken)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE integrations
		SET access_token = $2,
		    refresh_token = COALESCE($3, refresh_token),
		    token_expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, id, encAccess, encRefresh, expiresAt)
	return err
}

// ListExpiringBefore returns active records whose token expires before the
// cutoff and that hold a refresh token, oldest expiry first.
func (r *integrationRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*model.Integration, error) {
	var records []*model.Integration
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM integrations
		WHERE is_active = TRUE AND refresh_token IS NOT NULL AND token_expires_at < $1
		ORDER BY token_expires_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(records)
}

// DeleteByIDAndUser removes a record only when it belongs to the given user.
// Returns false when no such row exists.
func (r *integrationRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM integrations WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *integrationRepo) encode(token string) (string, error) {
	if r.encryptionKey == "" || token == "" {
		return token, nil
	}
	return util.Encrypt(r.encryptionKey, token)
}

func (r *integrationRepo) encodeOptional(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}
	encoded, err := r.encode(*token)
	if err != nil {
		return nil, err
	}
	return &encoded, nil
}

func (r *integrationRepo) decode(record *model.Integration) (*model.Integration, error) {
	if r.encryptionKey == "" {
		return record, nil
	}
	access, err := util.Decrypt(r.encryptionKey, record.AccessToken)
	if err != nil {
		return nil, err
	}
	record.AccessToken = access
	if record.RefreshToken != nil {
		refresh, err := util.Decrypt(r.encryptionKey, *record.RefreshToken)
		if err != nil {
			return nil, err
		}
		record.RefreshToken = &refresh
	}
	return record, nil
}

func (r *integrationRepo) decodeAll(records []*model.Integration) ([]*model.Integration, error) {
	for i, record := range records {
		decoded, err := r.decode(record)
		if err != nil {
			return nil, err
		}
		records[i] = decoded
	}
	return records, nil
}
