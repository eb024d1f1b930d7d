package repository

import (
	"context"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/platform-server-go/internal/model"
	"github.com/dealflow/platform-server-go/internal/util"
)

// These tests run against a real database; set TEST_DATABASE_URL to a
// Postgres instance with the migrations applied.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	id := uuid.NewString()
	token, err := util.GenerateToken()
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO users (id, email, name, token_hash)
		VALUES ($1, $2, 'Test User', $3)
	`, id, id+"@example.com", util.HashToken(token))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func upsertParams(userID string) model.UpsertIntegrationParams {
	rt := "rt-1"
	return model.UpsertIntegrationParams{
		UserID:         userID,
		Provider:       model.ProviderGoogle,
		Capability:     model.CapabilityProfile,
		AccessToken:    "at-1",
		RefreshToken:   &rt,
		TokenExpiresAt: time.Now().Add(time.Hour).UTC(),
		Scopes:         []string{"openid", "email"},
		DisplayName:    "Alice",
		Email:          "alice@example.com",
	}
}

func TestIntegrationRepository(t *testing.T) {
	db := testDB(t)
	repo := NewIntegrationRepository(db, "")
	ctx := context.Background()

	t.Run("upsert creates then replaces the same triple", func(t *testing.T) {
		userID := createTestUser(t, db)

		first, err := repo.Upsert(ctx, upsertParams(userID))
		require.NoError(t, err)
		assert.Equal(t, "at-1", first.AccessToken)

		params := upsertParams(userID)
		params.AccessToken = "at-2"
		second, err := repo.Upsert(ctx, params)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "at-2", second.AccessToken)

		records, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("different capabilities are separate rows", func(t *testing.T) {
		userID := createTestUser(t, db)

		_, err := repo.Upsert(ctx, upsertParams(userID))
		require.NoError(t, err)

		params := upsertParams(userID)
		params.Capability = model.CapabilityCalendar
		_, err = repo.Upsert(ctx, params)
		require.NoError(t, err)

		records, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("find by triple", func(t *testing.T) {
		userID := createTestUser(t, db)
		_, err := repo.Upsert(ctx, upsertParams(userID))
		require.NoError(t, err)

		record, err := repo.FindByTriple(ctx, userID, model.ProviderGoogle, model.CapabilityProfile)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "at-1", record.AccessToken)

		missing, err := repo.FindByTriple(ctx, userID, model.ProviderZoom, model.CapabilityProfile)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update tokens keeps the refresh token when none is supplied", func(t *testing.T) {
		userID := createTestUser(t, db)
		record, err := repo.Upsert(ctx, upsertParams(userID))
		require.NoError(t, err)

		expiry := time.Now().Add(2 * time.Hour).UTC()
		require.NoError(t, repo.UpdateTokens(ctx, record.ID, "at-new", nil, expiry))

		updated, err := repo.FindByIDAndUser(ctx, record.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, "at-new", updated.AccessToken)
		require.NotNil(t, updated.RefreshToken)
		assert.Equal(t, "rt-1", *updated.RefreshToken)
	})

	t.Run("list expiring before excludes fresh and refreshless records", func(t *testing.T) {
		userID := createTestUser(t, db)

		expiring := upsertParams(userID)
		expiring.TokenExpiresAt = time.Now().Add(time.Minute).UTC()
		_, err := repo.Upsert(ctx, expiring)
		require.NoError(t, err)

		fresh := upsertParams(userID)
		fresh.Capability = model.CapabilityCalendar
		_, err = repo.Upsert(ctx, fresh)
		require.NoError(t, err)

		noRefresh := upsertParams(userID)
		noRefresh.Capability = model.CapabilityDrive
		noRefresh.RefreshToken = nil
		noRefresh.TokenExpiresAt = time.Now().Add(time.Minute).UTC()
		_, err = repo.Upsert(ctx, noRefresh)
		require.NoError(t, err)

		records, err := repo.ListExpiringBefore(ctx, time.Now().Add(5*time.Minute))
		require.NoError(t, err)

		var mine []*model.Integration
		for _, r := range records {
			if r.UserID == userID {
				mine = append(mine, r)
			}
		}
		require.Len(t, mine, 1)
		assert.Equal(t, model.CapabilityProfile, mine[0].Capability)
	})

	t.Run("delete requires ownership", func(t *testing.T) {
		owner := createTestUser(t, db)
		other := createTestUser(t, db)
		record, err := repo.Upsert(ctx, upsertParams(owner))
		require.NoError(t, err)

		deleted, err := repo.DeleteByIDAndUser(ctx, record.ID, other)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = repo.DeleteByIDAndUser(ctx, record.ID, owner)
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func TestIntegrationRepositoryEncryption(t *testing.T) {
	db := testDB(t)
	key := hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	repo := NewIntegrationRepository(db, key)
	ctx := context.Background()

	userID := createTestUser(t, db)
	record, err := repo.Upsert(ctx, upsertParams(userID))
	require.NoError(t, err)

	// The repository hands back plaintext.
	assert.Equal(t, "at-1", record.AccessToken)
	require.NotNil(t, record.RefreshToken)
	assert.Equal(t, "rt-1", *record.RefreshToken)

	// The row itself holds ciphertext.
	var stored string
	require.NoError(t, db.Get(&stored, `SELECT access_token FROM integrations WHERE id = $1`, record.ID))
	assert.NotEqual(t, "at-1", stored)

	decrypted, err := util.Decrypt(key, stored)
	require.NoError(t, err)
	assert.Equal(t, "at-1", decrypted)
}
