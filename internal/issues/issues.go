// Package issues fetches issue details from Linear and GitHub so a task
// can be created from an issue URL.
package issues

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxDescriptionRunes caps how much of an issue body goes into a prompt.
const maxDescriptionRunes = 2000

var (
	// ErrUnknownProvider is returned for URLs that are neither Linear nor GitHub.
	ErrUnknownProvider = errors.New("unrecognized issue URL")
	// ErrMissingCredentials is returned when a provider needs a key that is not set.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrNotFound is returned when the provider has no such issue.
	ErrNotFound = errors.New("issue not found")
)

// Provider identifies an issue tracker.
type Provider string

const (
	ProviderLinear  Provider = "linear"
	ProviderGitHub  Provider = "github"
	ProviderUnknown Provider = "unknown"
)

// Issue is provider-agnostic issue data.
type Issue struct {
	Provider    Provider `json:"provider" yaml:"provider"`
	Identifier  string   `json:"identifier" yaml:"identifier"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	State       string   `json:"state" yaml:"state"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Labels      []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// DisplayTitle is the short form shown next to a task.
func (i *Issue) DisplayTitle() string {
	return i.Identifier + ": " + i.Title
}

// GitHubRef locates a GitHub issue.
type GitHubRef struct {
	Owner  string
	Repo   string
	Number int
}

// DetectProvider classifies an issue URL.
func DetectProvider(ref string) Provider {
	if _, ok := ParseLinearID(ref); ok {
		return ProviderLinear
	}
	if _, ok := ParseGitHubRef(ref); ok {
		return ProviderGitHub
	}
	return ProviderUnknown
}

// ParseLinearID extracts the identifier from linear.app/<team>/issue/<ID>/...
func ParseLinearID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "linear.app") {
		return "", false
	}
	parts := strings.Split(ref, "/")
	for i, part := range parts {
		if part == "issue" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}

// ParseGitHubRef extracts owner, repo and number from
// github.com/<owner>/<repo>/issues/<n>.
func ParseGitHubRef(ref string) (GitHubRef, bool) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "github.com") {
		return GitHubRef{}, false
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(ref, "/")
	for i, part := range parts {
		if part != "issues" || i < 2 || i+1 >= len(parts) {
			continue
		}
		n, err := strconv.Atoi(parts[i+1])
		if err != nil || n <= 0 {
			continue
		}
		return GitHubRef{Owner: parts[i-2], Repo: parts[i-1], Number: n}, true
	}
	return GitHubRef{}, false
}

// Prompt builds an agent prompt from an issue: "<id>: <title>", then the
// description truncated to a fixed number of characters.
func Prompt(issue *Issue) string {
	prompt := issue.DisplayTitle()
	if issue.Description == "" {
		return prompt
	}
	desc := []rune(issue.Description)
	if len(desc) > maxDescriptionRunes {
		desc = desc[:maxDescriptionRunes]
	}
	return prompt + "\n\n" + string(desc)
}

// Client talks to the issue providers.
type Client struct {
	HTTP         *http.Client
	LinearURL    string
	GitHubURL    string
	LinearAPIKey string
	GitHubToken  string
	UserAgent    string
}

// NewClient returns a client for the public provider endpoints.
func NewClient(linearAPIKey, githubToken string) *Client {
	return &Client{
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		LinearURL:    "https://api.linear.app/graphql",
		GitHubURL:    "https://api.github.com",
		LinearAPIKey: linearAPIKey,
		GitHubToken:  githubToken,
		UserAgent:    "pit-cli",
	}
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func statusError(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", provider, ErrNotFound)
	}
	return fmt.Errorf("%s API: %s: %s", provider, resp.Status, truncateBody(body))
}
