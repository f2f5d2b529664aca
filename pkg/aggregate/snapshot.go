package aggregate

import (
	"sort"
	"time"

	"github.com/devpulse-io/devpulse/pkg/github"
)

const (
	// maxTimeline bounds the merged recent-activity timeline.
	maxTimeline = 20
)

// Activity item types, in tie-break priority order.
const (
	TypeCommit      = "commit"
	TypePullRequest = "pull_request"
	TypeIssue       = "issue"
)

// ActivityItem is one entry of the merged recent-activity timeline.
// Commits carry message and repo; pull requests and issues carry title
// and state.
type ActivityItem struct {
	Type    string    `json:"type"`
	Date    time.Time `json:"date"`
	Message string    `json:"message,omitempty"`
	Title   string    `json:"title,omitempty"`
	URL     string    `json:"url"`
	Repo    string    `json:"repo,omitempty"`
	State   string    `json:"state,omitempty"`
}

// Snapshot is the complete merged activity summary for one user at one
// point in time. Immutable once built: a refresh replaces it wholesale,
// never patches it field by field. Field names are the cached wire shape.
type Snapshot struct {
	Commits           int                         `json:"commits"`
	PullRequests      int                         `json:"pullRequests"`
	Issues            int                         `json:"issues"`
	Repositories      int                         `json:"repositories"`
	Followers         int                         `json:"followers"`
	Following         int                         `json:"following"`
	ContributionGraph github.ContributionCalendar `json:"contributionGraph"`
	RecentActivity    []ActivityItem              `json:"recentActivity"`
	TopLanguages      []github.LanguageCount      `json:"topLanguages"`
}

// mergeTimeline combines the three event streams into one timeline sorted
// by date descending, truncated to the 20 most recent entries. Entries
// with identical timestamps keep a fixed priority (commit, then pull
// request, then issue) because they are appended in that order and the
// sort is stable.
func mergeTimeline(commits []github.Commit, prs, issues []github.Issue) []ActivityItem {
	items := make([]ActivityItem, 0, len(commits)+len(prs)+len(issues))

	for _, c := range commits {
		items = append(items, ActivityItem{
			Type:    TypeCommit,
			Date:    c.Date,
			Message: c.Message,
			URL:     c.URL,
			Repo:    c.Repo,
		})
	}
	for _, pr := range prs {
		items = append(items, ActivityItem{
			Type:  TypePullRequest,
			Date:  pr.CreatedAt,
			Title: pr.Title,
			URL:   pr.URL,
			State: pr.State,
		})
	}
	for _, issue := range issues {
		items = append(items, ActivityItem{
			Type:  TypeIssue,
			Date:  issue.CreatedAt,
			Title: issue.Title,
			URL:   issue.URL,
			State: issue.State,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	if len(items) > maxTimeline {
		items = items[:maxTimeline]
	}
	return items
}
