package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealflow/platform-server-go/internal/config"
	"github.com/dealflow/platform-server-go/internal/oauth"
	"github.com/dealflow/platform-server-go/internal/repository"
)

// RefreshJob proactively renews provider tokens that are about to expire. It
// runs independently of request handling and writes back through the same
// repository contract the handlers use; a record it misses is still
// refreshed lazily at point of use.
type RefreshJob struct {
	repo     repository.IntegrationRepository
	registry *oauth.Registry
	interval time.Duration
	done     chan struct{}
}

func NewRefreshJob(repo repository.IntegrationRepository, registry *oauth.Registry, interval time.Duration) *RefreshJob {
	return &RefreshJob{
		repo:     repo,
		registry: registry,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *RefreshJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("token refresh job started")
}

func (j *RefreshJob) Stop() {
	close(j.done)
	log.Info().Msg("token refresh job stopped")
}

func (j *RefreshJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.refreshExpiring()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.refreshExpiring()
		}
	}
}

func (j *RefreshJob) refreshExpiring() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(config.TokenRefreshLead)
	records, err := j.repo.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("refresh job: failed to list expiring integrations")
		return
	}

	refreshed := 0
	for _, record := range records {
		adapter, err := j.registry.Get(record.Provider)
		if err != nil {
			// Provider was disabled after the record was created; leave the
			// record for lazy refresh or disconnect.
			continue
		}

		tokens, err := adapter.Refresh(ctx, *record.RefreshToken)
		if err != nil {
			log.Warn().Err(err).
				Str("provider", record.Provider).
				Str("integrationId", record.ID).
				Msg("refresh job: token refresh failed")
			continue
		}

		var newRefresh *string
		if tokens.RefreshToken != "" {
			newRefresh = &tokens.RefreshToken
		}
		if err := j.repo.UpdateTokens(ctx, record.ID, tokens.AccessToken, newRefresh, tokens.ExpiresAt(time.Now())); err != nil {
			log.Error().Err(err).Str("integrationId", record.ID).Msg("refresh job: failed to persist refreshed tokens")
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		log.Info().Int("count", refreshed).Msg("refresh job: tokens renewed")
	}
}
