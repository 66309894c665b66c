// Package version answers "is a newer walletlink available": it fetches
// the latest GitHub release for a repository and compares release tags
// against the version baked into the binary at build time.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a release lookup.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a release response is read. The
	// latest-release payload is small; anything larger is suspect.
	maxBodySize = 64 * 1024
)

// Errors returned by release lookups.
var (
	ErrReleaseLookupFailed = errors.New("release lookup failed")
	ErrInvalidRepository   = errors.New("invalid repository")
)

// repoNamePattern matches GitHub owner and repository names.
var repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// GitHubRelease is the subset of the GitHub release payload the
// update check cares about.
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body"`
}

// Client fetches release metadata from GitHub.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithTimeout sets the lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates a release client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("walletlink/dev (%s/%s)", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

//nolint:gochecknoglobals // package-level convenience client for the common path
var defaultClient = NewClient()

// GetLatestRelease fetches the latest release for owner/repo using the
// default client.
func GetLatestRelease(ctx context.Context, owner, repo string) (*GitHubRelease, error) {
	return defaultClient.GetLatestRelease(ctx, owner, repo)
}

// GetLatestRelease fetches the latest release for owner/repo.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*GitHubRelease, error) {
	if owner == "" || repo == "" || !repoNamePattern.MatchString(owner) || !repoNamePattern.MatchString(repo) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidRepository, owner, repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrReleaseLookupFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var release GitHubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &release, nil
}

// semver is a parsed major.minor.patch triple.
type semver struct {
	major, minor, patch int
}

// CompareVersions orders two version strings. It returns 1 when v1 is
// newer than v2, -1 when older, and 0 when equal. Development builds
// ("dev", empty, or a bare commit hash) sort below every tagged release.
func CompareVersions(v1, v2 string) int {
	dev1, dev2 := isDevVersion(v1), isDevVersion(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	a, b := parseSemver(v1), parseSemver(v2)
	if c := compareInt(a.major, b.major); c != 0 {
		return c
	}
	if c := compareInt(a.minor, b.minor); c != 0 {
		return c
	}
	return compareInt(a.patch, b.patch)
}

// IsNewerVersion reports whether latest is strictly newer than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

func compareInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// parseSemver extracts the numeric triple from a tag like "v1.2.3" or
// "1.2.3-rc1". Missing or non-numeric components parse as zero.
func parseSemver(v string) semver {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}

	var out semver
	fields := []*int{&out.major, &out.minor, &out.patch}
	for i, part := range strings.SplitN(v, ".", 3) {
		if n, err := strconv.Atoi(part); err == nil {
			*fields[i] = n
		}
	}
	return out
}

// isDevVersion reports whether v identifies an untagged development
// build rather than a release.
func isDevVersion(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" || v == "dev" {
		return true
	}
	return isCommitHash(v)
}

// isCommitHash reports whether s looks like a git SHA: 7 to 40 hex
// characters with at least one letter, so numeric tags like "1234567"
// are not mistaken for hashes. A "-dirty" suffix is ignored.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
