package aggregate

import (
	"testing"
	"time"

	"github.com/devpulse-io/devpulse/pkg/github"
)

func TestMergeTimeline_SortsDescending(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	items := mergeTimeline(
		[]github.Commit{
			{Message: "old", Date: base.Add(-2 * time.Hour)},
			{Message: "new", Date: base},
		},
		[]github.Issue{{Title: "pr", CreatedAt: base.Add(-time.Hour)}},
		[]github.Issue{{Title: "issue", CreatedAt: base.Add(-30 * time.Minute)}},
	)

	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Date.After(items[i-1].Date) {
			t.Errorf("Not sorted descending at index %d", i)
		}
	}
	if items[0].Message != "new" {
		t.Errorf("Expected newest commit first, got %+v", items[0])
	}
}

func TestMergeTimeline_TiesKeepTypePriority(t *testing.T) {
	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	items := mergeTimeline(
		[]github.Commit{{Message: "c", Date: ts}},
		[]github.Issue{{Title: "p", CreatedAt: ts}},
		[]github.Issue{{Title: "i", CreatedAt: ts}},
	)

	want := []string{TypeCommit, TypePullRequest, TypeIssue}
	for i, kind := range want {
		if items[i].Type != kind {
			t.Errorf("Index %d: got %s, want %s", i, items[i].Type, kind)
		}
	}
}

func TestMergeTimeline_TruncatesToTwenty(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	var commits []github.Commit
	for i := 0; i < 15; i++ {
		commits = append(commits, github.Commit{Date: base.Add(time.Duration(i) * time.Minute)})
	}
	var prs []github.Issue
	for i := 0; i < 10; i++ {
		prs = append(prs, github.Issue{CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	items := mergeTimeline(commits, prs, nil)
	if len(items) != 20 {
		t.Errorf("Expected timeline capped at 20, got %d", len(items))
	}
}

func TestMergeTimeline_Empty(t *testing.T) {
	if items := mergeTimeline(nil, nil, nil); len(items) != 0 {
		t.Errorf("Expected empty timeline, got %d items", len(items))
	}
}
