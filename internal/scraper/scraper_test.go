package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
)

func newStubScraper(run runFunc) *Scraper {
	s := New("python3", "scripts/scrape_website.py", 5*time.Second)
	s.run = run
	return s
}

func TestScrape(t *testing.T) {
	t.Run("parses the JSON line and stamps the source url", func(t *testing.T) {
		var gotArgs []string
		s := newStubScraper(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte(`{"companyName":"Acme","description":"Widgets","teamMembers":[{"name":"Ada","title":"CEO"}]}` + "\n"), nil, nil
		})

		result, err := s.Scrape(context.Background(), "https://acme.example.com")
		require.NoError(t, err)
		assert.Equal(t, "Acme", result.CompanyName)
		assert.Equal(t, "Widgets", result.Description)
		require.Len(t, result.TeamMembers, 1)
		assert.Equal(t, "Ada", result.TeamMembers[0].Name)
		assert.Equal(t, "https://acme.example.com", result.SourceURL)

		assert.Equal(t, []string{"python3", "scripts/scrape_website.py", "https://acme.example.com"}, gotArgs)
	})

	t.Run("only the first stdout line is parsed", func(t *testing.T) {
		s := newStubScraper(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
			return []byte("{\"companyName\":\"Acme\"}\nDEBUG: fetched 3 pages\n"), nil, nil
		})

		result, err := s.Scrape(context.Background(), "https://acme.example.com")
		require.NoError(t, err)
		assert.Equal(t, "Acme", result.CompanyName)
	})

	t.Run("process failure surfaces the stderr tail", func(t *testing.T) {
		s := newStubScraper(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
			return nil, []byte("Traceback: connection refused"), errors.New("exit status 1")
		})

		_, err := s.Scrape(context.Background(), "https://down.example.com")
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeScrape, appErr.Code)
		assert.Contains(t, appErr.Message, "connection refused")
	})

	t.Run("timeout is reported as such", func(t *testing.T) {
		s := newStubScraper(func(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
			<-ctx.Done()
			return nil, nil, ctx.Err()
		})
		s.timeout = 10 * time.Millisecond

		_, err := s.Scrape(context.Background(), "https://slow.example.com")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeScrape, apperrors.GetCode(err))
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("empty stdout is an error", func(t *testing.T) {
		s := newStubScraper(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
			return []byte("\n"), nil, nil
		})

		_, err := s.Scrape(context.Background(), "https://acme.example.com")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeScrape, apperrors.GetCode(err))
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		s := newStubScraper(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
			return []byte("not json at all\n"), nil, nil
		})

		_, err := s.Scrape(context.Background(), "https://acme.example.com")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeScrape, apperrors.GetCode(err))
	})
}

func TestScrapeURLValidation(t *testing.T) {
	s := newStubScraper(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
		t.Fatal("scraper must not run for invalid URLs")
		return nil, nil, nil
	})

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative path", "/about"},
		{"missing scheme", "acme.example.com"},
		{"ftp scheme", "ftp://acme.example.com"},
		{"scheme only", "https://"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Scrape(context.Background(), tc.url)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
		})
	}
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail([]byte("  short \n"), 200))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := tail(long, 200)
	assert.Len(t, got, 203)
	assert.Equal(t, "...", got[:3])
}
