package task

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHub creates tasks as GitHub issues. The destination is "owner/repo".
// Status and priority have no GitHub equivalent; tags become labels.
type GitHub struct {
	// BaseURL overrides the API endpoint, for tests. Must end with a slash.
	BaseURL string
}

// NewGitHub returns a GitHub client with production defaults.
func NewGitHub() *GitHub {
	return &GitHub{}
}

// CreateTask opens an issue in the destination repository. No internal retry.
func (g *GitHub) CreateTask(ctx context.Context, token, destination string, p Payload) (Created, error) {
	owner, repo, ok := strings.Cut(destination, "/")
	if !ok || owner == "" || repo == "" {
		return Created{}, &APIError{Service: "github", Message: fmt.Sprintf("destination %q is not owner/repo", destination)}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if g.BaseURL != "" {
		base, err := url.Parse(g.BaseURL)
		if err != nil {
			return Created{}, fmt.Errorf("github: parse base url: %w", err)
		}
		client.BaseURL = base
	}

	labels := p.Tags
	issue, _, err := client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title:  github.String(p.Name),
		Body:   github.String(p.Description),
		Labels: &labels,
	})
	if err != nil {
		return Created{}, normalizeGitHubError(err)
	}

	return Created{
		ID:   fmt.Sprintf("%d", issue.GetNumber()),
		URL:  issue.GetHTMLURL(),
		Name: issue.GetTitle(),
	}, nil
}

// normalizeGitHubError adapts go-github's error types into APIError.
func normalizeGitHubError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		status := 0
		if ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
		return &APIError{Service: "github", StatusCode: status, Message: ghErr.Message}
	}
	return &APIError{Service: "github", Message: err.Error()}
}
