package issues

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const linearIssueFields = `identifier title description state { name } url labels { nodes { name } }`

const linearIssueQuery = `query($filter: IssueFilter!) {
  issues(filter: $filter, first: 1) { nodes { ` + linearIssueFields + ` } }
}`

const linearSearchQuery = `query($query: String!, $first: Int!) {
  issueSearch(query: $query, first: $first, orderBy: updatedAt) { nodes { ` + linearIssueFields + ` } }
}`

const linearAssignedQuery = `query($first: Int!) {
  viewer {
    assignedIssues(first: $first, filter: { state: { type: { nin: ["completed", "canceled"] } } }, orderBy: updatedAt) {
      nodes { ` + linearIssueFields + ` }
    }
  }
}`

// Fetch resolves an issue URL against its provider.
func (c *Client) Fetch(ctx context.Context, ref string) (*Issue, error) {
	ref = strings.TrimSpace(ref)
	if id, ok := ParseLinearID(ref); ok {
		return c.FetchLinear(ctx, id)
	}
	if gh, ok := ParseGitHubRef(ref); ok {
		return c.FetchGitHub(ctx, gh)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, ref)
}

// FetchLinear loads a Linear issue by identifier such as ENG-42.
func (c *Client) FetchLinear(ctx context.Context, identifier string) (*Issue, error) {
	body, err := sjson.Set(`{}`, "query", linearIssueQuery)
	if err == nil {
		body, err = sjson.Set(body, "variables.filter.identifier.eq", identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("build linear query: %w", err)
	}

	data, err := c.linear(ctx, body)
	if err != nil {
		return nil, err
	}
	node := gjson.GetBytes(data, "data.issues.nodes.0")
	if !node.Exists() {
		return nil, fmt.Errorf("linear %s: %w", identifier, ErrNotFound)
	}
	return linearIssue(node), nil
}

// SearchLinear runs a full-text Linear search.
func (c *Client) SearchLinear(ctx context.Context, query string, limit int) ([]Issue, error) {
	body, err := sjson.Set(`{}`, "query", linearSearchQuery)
	if err == nil {
		body, err = sjson.Set(body, "variables.query", query)
	}
	if err == nil {
		body, err = sjson.Set(body, "variables.first", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("build linear query: %w", err)
	}

	data, err := c.linear(ctx, body)
	if err != nil {
		return nil, err
	}
	return linearIssues(gjson.GetBytes(data, "data.issueSearch.nodes")), nil
}

// AssignedLinear lists open Linear issues assigned to the API key's user.
func (c *Client) AssignedLinear(ctx context.Context, limit int) ([]Issue, error) {
	body, err := sjson.Set(`{}`, "query", linearAssignedQuery)
	if err == nil {
		body, err = sjson.Set(body, "variables.first", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("build linear query: %w", err)
	}

	data, err := c.linear(ctx, body)
	if err != nil {
		return nil, err
	}
	return linearIssues(gjson.GetBytes(data, "data.viewer.assignedIssues.nodes")), nil
}

func (c *Client) linear(ctx context.Context, body string) ([]byte, error) {
	if c.LinearAPIKey == "" {
		return nil, fmt.Errorf("%w: Linear API key not set; run `pit config set linear.api_key <key>`", ErrMissingCredentials)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.LinearURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("linear request: %w", err)
	}
	req.Header.Set("Authorization", c.LinearAPIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)

	data, resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("call linear API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("linear", resp, data)
	}
	if errs := gjson.GetBytes(data, "errors"); errs.Exists() {
		return nil, fmt.Errorf("linear API error: %s", errs.Get("0.message").String())
	}
	return data, nil
}

func linearIssue(node gjson.Result) *Issue {
	issue := &Issue{
		Provider:    ProviderLinear,
		Identifier:  node.Get("identifier").String(),
		Title:       node.Get("title").String(),
		Description: node.Get("description").String(),
		State:       node.Get("state.name").String(),
		URL:         node.Get("url").String(),
	}
	if issue.State == "" {
		issue.State = "Unknown"
	}
	for _, l := range node.Get("labels.nodes.#.name").Array() {
		issue.Labels = append(issue.Labels, l.String())
	}
	return issue
}

func linearIssues(nodes gjson.Result) []Issue {
	var out []Issue
	for _, node := range nodes.Array() {
		out = append(out, *linearIssue(node))
	}
	return out
}

// FetchGitHub loads a GitHub issue. The token is optional for public repos.
func (c *Client) FetchGitHub(ctx context.Context, ref GitHubRef) (*Issue, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d", strings.TrimRight(c.GitHubURL, "/"), ref.Owner, ref.Repo, ref.Number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.UserAgent)
	if c.GitHubToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.GitHubToken)
	}

	data, resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("call github API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("github", resp, data)
	}

	number := gjson.GetBytes(data, "number").Int()
	if number == 0 {
		number = int64(ref.Number)
	}
	state := gjson.GetBytes(data, "state").String()
	if state == "" {
		state = "unknown"
	}
	issue := &Issue{
		Provider:    ProviderGitHub,
		Identifier:  fmt.Sprintf("#%d", number),
		Title:       gjson.GetBytes(data, "title").String(),
		Description: gjson.GetBytes(data, "body").String(),
		State:       state,
		URL:         gjson.GetBytes(data, "html_url").String(),
	}
	for _, l := range gjson.GetBytes(data, "labels.#.name").Array() {
		issue.Labels = append(issue.Labels, l.String())
	}
	return issue, nil
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp, fmt.Errorf("read response: %w", err)
	}
	return data, resp, nil
}
