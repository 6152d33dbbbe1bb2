// Package fetch retrieves the text content of URLs on behalf of the agent.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// MaxContentLength is the character ceiling applied to fetched content.
const MaxContentLength = 8000

// TruncationMarker is appended when content exceeds MaxContentLength.
const TruncationMarker = "\n\n[Content truncated...]"

const defaultTimeout = 15 * time.Second

// Fetcher retrieves URL content with redirect following and a fixed timeout.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher. A zero timeout selects the default.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the content of url as text. GitHub "tree" URLs are
// rewritten to the corresponding raw README first. A non-200 status is
// reported in the returned text rather than as an error; only transport
// failures return an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	target := RewriteGitHubTreeURL(url)
	if target != url {
		klog.V(2).Infof("rewrote GitHub tree URL %q to %q", url, target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %q: %w", target, err)
	}
	req.Header.Set("User-Agent", "kubechat/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", target, err)
	}
	defer resp.Body.Close()

	// Read a little past the cap so truncation is detectable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentLength*4))
	if err != nil {
		return "", fmt.Errorf("reading body of %q: %w", target, err)
	}

	content := Truncate(string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("HTTP %d from %s:\n%s", resp.StatusCode, target, content), nil
	}
	return content, nil
}

// Truncate caps s at MaxContentLength characters, appending a visible marker
// when content was dropped. Content at or under the limit is returned as is.
func Truncate(s string) string {
	if len(s) <= MaxContentLength {
		return s
	}
	return s[:MaxContentLength] + TruncationMarker
}

// RewriteGitHubTreeURL rewrites a github.com "tree" browse URL to the raw
// README it most likely refers to, so the agent receives markdown instead of
// an HTML page. This is a best-effort heuristic: any URL that does not match
// the expected shape is returned verbatim.
//
//	https://github.com/{owner}/{repo}/tree/{branch}[/{path}]
//	  -> https://raw.githubusercontent.com/{owner}/{repo}/{branch}[/{path}]/README.md
func RewriteGitHubTreeURL(url string) string {
	const host = "github.com/"
	idx := strings.Index(url, host)
	if idx < 0 {
		return url
	}
	rest := url[idx+len(host):]

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	// owner / repo / "tree" / branch [/ path...]
	if len(parts) < 4 || parts[2] != "tree" {
		return url
	}
	owner, repo, branch := parts[0], parts[1], parts[3]
	if owner == "" || repo == "" || branch == "" {
		return url
	}

	segments := append([]string{owner, repo, branch}, parts[4:]...)
	return "https://raw.githubusercontent.com/" + strings.Join(segments, "/") + "/README.md"
}
