package pipeline

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
)

// DetectRepo derives the GitHub owner/repo pair from the origin remote of
// the repository at path.
func DetectRepo(path string) (string, string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", "", fmt.Errorf("opening repo: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", "", fmt.Errorf("getting origin remote: %w", err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", fmt.Errorf("origin remote has no URL")
	}

	owner, name, ok := parseRemoteURL(urls[0])
	if !ok {
		return "", "", fmt.Errorf("unrecognized remote URL %q", urls[0])
	}
	return owner, name, nil
}

// CurrentBranch returns the checked-out branch name of the repository at
// path.
func CurrentBranch(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("opening repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached")
	}
	return head.Name().Short(), nil
}

// parseRemoteURL extracts owner and repo from the common remote URL shapes:
// git@github.com:owner/repo.git and https://github.com/owner/repo[.git].
func parseRemoteURL(u string) (string, string, bool) {
	u = strings.TrimSuffix(u, ".git")

	if rest, ok := strings.CutPrefix(u, "git@"); ok {
		_, path, found := strings.Cut(rest, ":")
		if !found {
			return "", "", false
		}
		return splitOwnerRepo(path)
	}

	for _, scheme := range []string{"https://", "http://", "ssh://git@"} {
		if rest, ok := strings.CutPrefix(u, scheme); ok {
			_, path, found := strings.Cut(rest, "/")
			if !found {
				return "", "", false
			}
			return splitOwnerRepo(path)
		}
	}
	return "", "", false
}

func splitOwnerRepo(path string) (string, string, bool) {
	owner, repo, found := strings.Cut(strings.Trim(path, "/"), "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}
