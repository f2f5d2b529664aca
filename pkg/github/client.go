package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/devpulse-io/devpulse/pkg/ratebudget"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"

	commitWindowDays = 30
	maxRecentItems   = 20
	repoSampleSize   = 100
	maxLanguages     = 5
	maxAttempts      = 3
)

// Client issues the individual GitHub fetch operations. Every response's
// rate-limit headers are reported to the budget tracker.
type Client struct {
	baseURL string
	client  *http.Client
	tracker *ratebudget.Tracker
	backoff *ExponentialBackoff
}

// NewClient creates a client against the given API base URL. An empty
// baseURL targets api.github.com; the GraphQL endpoint is derived from it.
func NewClient(baseURL string, tracker *ratebudget.Tracker) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		tracker: tracker,
		backoff: DefaultBackoff(),
	}
}

// RecentCommits searches commits authored by username in the last 30 days.
// The result carries the full match count and at most the 20 newest items.
func (c *Client) RecentCommits(ctx context.Context, username, token string) (CommitResult, error) {
	since := time.Now().UTC().AddDate(0, 0, -commitWindowDays).Format(time.RFC3339)
	params := url.Values{}
	params.Set("q", fmt.Sprintf("author:%s committer-date:>%s", username, since))
	params.Set("per_page", strconv.Itoa(repoSampleSize))
	params.Set("sort", "committer-date")
	params.Set("order", "desc")

	var raw struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			HTMLURL string `json:"html_url"`
			Commit  struct {
				Message   string `json:"message"`
				Committer struct {
					Date time.Time `json:"date"`
				} `json:"committer"`
			} `json:"commit"`
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/search/commits", params, token, &raw); err != nil {
		return CommitResult{}, err
	}

	items := raw.Items
	if len(items) > maxRecentItems {
		items = items[:maxRecentItems]
	}
	result := CommitResult{Total: raw.TotalCount}
	for _, it := range items {
		result.Items = append(result.Items, Commit{
			Message: it.Commit.Message,
			URL:     it.HTMLURL,
			Repo:    it.Repository.FullName,
			Date:    it.Commit.Committer.Date,
		})
	}
	return result, nil
}

// PullRequests searches pull requests authored by username.
func (c *Client) PullRequests(ctx context.Context, username, token string) (IssueResult, error) {
	return c.searchIssues(ctx, username, token, "pr")
}

// Issues searches issues authored by username.
func (c *Client) Issues(ctx context.Context, username, token string) (IssueResult, error) {
	return c.searchIssues(ctx, username, token, "issue")
}

func (c *Client) searchIssues(ctx context.Context, username, token, kind string) (IssueResult, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("author:%s type:%s", username, kind))
	params.Set("per_page", strconv.Itoa(repoSampleSize))
	params.Set("sort", "created")
	params.Set("order", "desc")

	var raw struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Title     string    `json:"title"`
			HTMLURL   string    `json:"html_url"`
			State     string    `json:"state"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/search/issues", params, token, &raw); err != nil {
		return IssueResult{}, err
	}

	items := raw.Items
	if len(items) > maxRecentItems {
		items = items[:maxRecentItems]
	}
	result := IssueResult{Total: raw.TotalCount}
	for _, it := range items {
		result.Items = append(result.Items, Issue{
			Title:     it.Title,
			URL:       it.HTMLURL,
			State:     it.State,
			CreatedAt: it.CreatedAt,
		})
	}
	return result, nil
}

// Profile fetches the public profile counters for username.
func (c *Client) Profile(ctx context.Context, username, token string) (Profile, error) {
	var p Profile
	if err := c.get(ctx, "/users/"+url.PathEscape(username), nil, token, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

const contributionQuery = `
query($userName:String!) {
  user(login: $userName){
    contributionsCollection {
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            contributionCount
            date
          }
        }
      }
    }
  }
}`

// ContributionCalendar fetches the contribution calendar through the
// GraphQL API and flattens it to one entry per day, oldest first.
func (c *Client) ContributionCalendar(ctx context.Context, username, token string) (ContributionCalendar, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     contributionQuery,
		"variables": map[string]string{"userName": username},
	})
	if err != nil {
		return ContributionCalendar{}, fmt.Errorf("marshal graphql query: %w", err)
	}

	var raw struct {
		Data struct {
			User *struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						TotalContributions int `json:"totalContributions"`
						Weeks              []struct {
							ContributionDays []struct {
								ContributionCount int    `json:"contributionCount"`
								Date              string `json:"date"`
							} `json:"contributionDays"`
						} `json:"weeks"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
	}
	err = c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &raw)
	if err != nil {
		return ContributionCalendar{}, err
	}
	if raw.Data.User == nil {
		return ContributionCalendar{}, &TransientError{Err: fmt.Errorf("graphql response has no user %q", username)}
	}

	cal := raw.Data.User.ContributionsCollection.ContributionCalendar
	result := ContributionCalendar{Total: cal.TotalContributions}
	for _, week := range cal.Weeks {
		for _, day := range week.ContributionDays {
			result.Days = append(result.Days, ContributionDay{Date: day.Date, Count: day.ContributionCount})
		}
	}
	return result, nil
}

// TopLanguages samples the user's most recently updated repositories
// (at most 100) and ranks primary languages by occurrence. Ties keep the
// order in which the languages were first encountered.
func (c *Client) TopLanguages(ctx context.Context, username, token string) ([]LanguageCount, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(repoSampleSize))
	params.Set("sort", "updated")
	params.Set("direction", "desc")

	var repos []struct {
		Language string `json:"language"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(username)+"/repos", params, token, &repos); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var order []string
	for _, repo := range repos {
		if repo.Language == "" {
			continue
		}
		if _, seen := counts[repo.Language]; !seen {
			order = append(order, repo.Language)
		}
		counts[repo.Language]++
	}

	ranked := make([]LanguageCount, 0, len(order))
	for _, lang := range order {
		ranked = append(ranked, LanguageCount{Language: lang, Count: counts[lang]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > maxLanguages {
		ranked = ranked[:maxLanguages]
	}
	return ranked, nil
}

// RateLimit probes the /rate_limit endpoint and reports the core quota to
// the budget tracker. The probe itself does not count against the quota.
func (c *Client) RateLimit(ctx context.Context, token string) (ratebudget.Budget, error) {
	var raw struct {
		Rate struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"rate"`
	}
	if err := c.get(ctx, "/rate_limit", nil, token, &raw); err != nil {
		return ratebudget.Budget{}, err
	}
	budget := ratebudget.Budget{
		Limit:     raw.Rate.Limit,
		Remaining: raw.Rate.Remaining,
		ResetAt:   time.Unix(raw.Rate.Reset, 0),
	}
	if c.tracker != nil {
		c.tracker.Observe(budget)
	}
	return budget, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, token string, out any) error {
	return c.do(ctx, func() (*http.Request, error) {
		u := c.baseURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, token)
		return req, nil
	}, out)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

// do executes a request built by newReq, retrying transient failures with
// backoff. Auth and quota failures return immediately.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error), out any) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &TransientError{Err: ctx.Err()}
			case <-time.After(c.backoff.Next(attempt - 1)):
			}
		}

		req, err := newReq()
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = &TransientError{Err: err}
			continue
		}

		err = c.handle(resp, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) handle(resp *http.Response, out any) error {
	defer resp.Body.Close()
	c.observe(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransientError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		// GitHub reports quota exhaustion as 403 with a zeroed remaining
		// header, or as 429.
		if resp.StatusCode == http.StatusTooManyRequests || resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return &QuotaError{ResetAt: resetTime(resp.Header)}
		}
		return &AuthError{StatusCode: resp.StatusCode}
	default:
		return &TransientError{StatusCode: resp.StatusCode}
	}
}

// observe feeds the response's rate-limit headers to the budget tracker.
func (c *Client) observe(resp *http.Response) {
	if c.tracker == nil {
		return
	}
	limit, err1 := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, err2 := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err1 != nil || err2 != nil {
		return
	}
	c.tracker.Observe(ratebudget.Budget{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetTime(resp.Header),
	})
}

func resetTime(h http.Header) time.Time {
	reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(reset, 0)
}
