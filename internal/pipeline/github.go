package pipeline

import (
	"context"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/coverwatch/internal/diff"
	"github.com/everstacklabs/coverwatch/internal/report"
)

func newGitHubClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// prBranches returns the base and head branch names of a pull request.
func prBranches(ctx context.Context, gh *github.Client, owner, repo string, number int) (string, string, error) {
	pr, _, err := gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", "", err
	}
	return pr.GetBase().GetRef(), pr.GetHead().GetRef(), nil
}

// changedFiles lists every file changed in the pull request.
func changedFiles(ctx context.Context, gh *github.Client, owner, repo string, number int) ([]diff.ChangedFile, error) {
	var files []diff.ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			files = append(files, diff.ChangedFile{
				Filename: f.GetFilename(),
				Status:   f.GetStatus(),
			})
		}
		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

// publishComment creates the coverage comment on the PR, or updates the
// existing one located by the report marker. Returns the comment ID and
// whether an existing comment was updated.
func publishComment(ctx context.Context, gh *github.Client, owner, repo string, number int, body string) (int64, bool, error) {
	existing, err := findMarkedComment(ctx, gh, owner, repo, number)
	if err != nil {
		return 0, false, err
	}

	comment := &github.IssueComment{Body: &body}
	if existing != 0 {
		updated, _, err := gh.Issues.EditComment(ctx, owner, repo, existing, comment)
		if err != nil {
			return 0, false, err
		}
		return updated.GetID(), true, nil
	}

	created, _, err := gh.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return 0, false, err
	}
	return created.GetID(), false, nil
}

// findMarkedComment returns the ID of the first PR comment carrying the
// report marker, or 0 when none exists yet.
func findMarkedComment(ctx context.Context, gh *github.Client, owner, repo string, number int) (int64, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return 0, err
		}
		for _, c := range comments {
			if strings.Contains(c.GetBody(), report.Marker) {
				return c.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			return 0, nil
		}
		opts.Page = resp.NextPage
	}
}
