package github

import "time"

// Commit is one commit authored by the tracked user.
type Commit struct {
	Message string    `json:"message"`
	URL     string    `json:"url"`
	Repo    string    `json:"repo"`
	Date    time.Time `json:"date"`
}

// CommitResult holds the total match count and the most recent items.
type CommitResult struct {
	Total int
	Items []Commit
}

// Issue is a pull request or issue authored by the tracked user. The two
// share a shape because GitHub serves both through the issue search API.
type Issue struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueResult holds the total match count and the most recent items.
type IssueResult struct {
	Total int
	Items []Issue
}

// Profile carries the public counters from the user profile endpoint.
type Profile struct {
	Login       string `json:"login"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// ContributionDay is one day of the contribution calendar.
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ContributionCalendar is the flattened contribution calendar: a total plus
// one entry per day, oldest first.
type ContributionCalendar struct {
	Total int               `json:"totalContributions"`
	Days  []ContributionDay `json:"days"`
}

// LanguageCount is one entry of the top-languages ranking.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}
