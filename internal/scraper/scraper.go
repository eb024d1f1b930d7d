package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
)

// Result is the company snapshot produced by the Python scraper: one line of
// JSON on stdout describing the target website.
type Result struct {
	CompanyName  string        `json:"companyName"`
	Description  string        `json:"description"`
	Industry     string        `json:"industry"`
	Location     string        `json:"location"`
	TeamMembers  []TeamMember  `json:"teamMembers"`
	Testimonials []Testimonial `json:"testimonials"`
	SourceURL    string        `json:"sourceUrl"`
}

type TeamMember struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type Testimonial struct {
	Author string `json:"author"`
	Quote  string `json:"quote"`
}

// runFunc executes the scraper process and returns its stdout and stderr.
// Swapped out in tests.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Scraper shells out to the Python website scraper. The subprocess is an
// opaque collaborator: one URL argument in, one line of JSON out, nonzero
// exit with stderr diagnostics on failure.
type Scraper struct {
	pythonBin string
	script    string
	timeout   time.Duration
	run       runFunc
}

func New(pythonBin, script string, timeout time.Duration) *Scraper {
	return &Scraper{
		pythonBin: pythonBin,
		script:    script,
		timeout:   timeout,
		run:       runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Scrape runs the scraper against targetURL and parses its output.
func (s *Scraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, apperrors.InvalidInput("url", "must be an absolute http(s) URL")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	stdout, stderr, err := s.run(ctx, s.pythonBin, s.script, targetURL)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.ScrapeFailed("scraper timed out", ctx.Err())
		}
		log.Error().Err(err).Str("url", targetURL).Str("stderr", tail(stderr, 500)).Msg("scraper process failed")
		return nil, apperrors.ScrapeFailed(tail(stderr, 200), err)
	}

	line := firstLine(stdout)
	if len(line) == 0 {
		return nil, apperrors.ScrapeFailed("scraper produced no output", nil)
	}

	var result Result
	if err := json.Unmarshal(line, &result); err != nil {
		return nil, apperrors.ScrapeFailed("scraper produced invalid JSON", err)
	}
	result.SourceURL = targetURL

	log.Info().Str("url", targetURL).Dur("elapsed", time.Since(started)).Msg("scrape completed")
	return &result, nil
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return bytes.TrimSpace(b[:i])
	}
	return bytes.TrimSpace(b)
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("...%s", s[len(s)-n:])
}
