package lookups

import (
	"net/url"
	"strings"
)

// extractSubreddit returns the lowercased subreddit slug of a
// www.reddit.com/r/<name>/... URL, or "" if u is not such a URL.
// Grounded on src/filters.rs::extract_subreddit in the original
// implementation.
func extractSubreddit(u *url.URL) string {
	if !strings.EqualFold(u.Hostname(), "www.reddit.com") {
		return ""
	}
	segments := pathSegments(u)
	if len(segments) >= 2 && strings.EqualFold(segments[0], "r") {
		return strings.ToLower(segments[1])
	}
	return ""
}

// extractGithubRepo returns the "owner/repo" path of a github.com URL,
// or "" if u is not such a URL. Grounded on
// src/filters.rs::extract_github in the original implementation.
func extractGithubRepo(u *url.URL) string {
	if !strings.EqualFold(u.Hostname(), "github.com") {
		return ""
	}
	segments := pathSegments(u)
	if len(segments) >= 2 {
		return segments[0] + "/" + segments[1]
	}
	return ""
}

func pathSegments(u *url.URL) []string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
