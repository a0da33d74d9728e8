// Package version reports the build version and looks for newer releases.
package version

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time with -ldflags "-X .../internal/version.Version=1.2.3"
var Version = "0.1.0-dev"

const (
	// DefaultReleasesURL is the GitHub latest-release endpoint for this project
	DefaultReleasesURL = "https://api.github.com/repos/dig-vijay-a/gene-expression-analysis/releases/latest"
	checkTimeout       = 5 * time.Second
)

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Update describes the latest published release
type Update struct {
	Current   string
	Latest    string
	URL       string
	Available bool
}

// Checker queries a releases endpoint
type Checker struct {
	URL    string
	Client *http.Client
}

// NewChecker returns a checker for the project's GitHub releases
func NewChecker() *Checker {
	return &Checker{
		URL:    DefaultReleasesURL,
		Client: &http.Client{Timeout: checkTimeout},
	}
}

// CheckForUpdate compares current against the latest release tag
func (c *Checker) CheckForUpdate(ctx context.Context, current string) (*Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "genepredict/"+current)
	req.Header.Set("Accept", "application/vnd.github+json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: checkTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	u := &Update{
		Current: strings.TrimPrefix(current, "v"),
		Latest:  strings.TrimPrefix(rel.TagName, "v"),
		URL:     rel.HTMLURL,
	}
	u.Available = u.Latest != "" && isNewerVersion(u.Latest, u.Current)
	return u, nil
}

// isNewerVersion reports latest > current on the numeric dotted parts.
// Pre-release and build suffixes are ignored.
func isNewerVersion(latest, current string) bool {
	l, c := parseVersion(latest), parseVersion(current)
	for i := 0; i < max(len(l), len(c)); i++ {
		if r := cmp.Compare(part(l, i), part(c, i)); r != 0 {
			return r > 0
		}
	}
	return false
}

func part(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

func parseVersion(v string) []int {
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}
	var out []int
	for _, p := range strings.Split(v, ".") {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
