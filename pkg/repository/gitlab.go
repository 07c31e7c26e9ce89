package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient implements the Client interface for GitLab repositories.
// The owner may be a nested group path ("group/sub").
type GitLabClient struct {
	host gitlabHost
}

// NewGitLabClient creates a new GitLab client with the provided configuration
// If no token is provided, the client will only have access to public repositories
// If a custom BaseURL is provided, it will be used for self-hosted GitLab instances
func NewGitLabClient(config Config) (*GitLabClient, error) {
	opts := []gitlab.ClientOptionFunc{}
	if config.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(config.BaseURL))
	}

	client, err := gitlab.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &GitLabClient{host: gitlabSDK{client: client}}, nil
}

// GetRepositoryInfo retrieves metadata about a GitLab project
func (g *GitLabClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error) {
	p, err := g.host.project(ctx, projectPath(owner, repo))
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info from GitLab: %w", err)
	}
	return &Info{
		Name:          p.Name,
		FullName:      p.PathWithNamespace,
		DefaultBranch: p.DefaultBranch,
		URL:           p.WebURL,
	}, nil
}

// ListFilesRecursive returns every blob in the tree at ref.
func (g *GitLabClient) ListFilesRecursive(ctx context.Context, owner, repo, ref string) ([]FileInfo, error) {
	ref, err := resolveRef(ctx, g, owner, repo, ref)
	if err != nil {
		return nil, err
	}

	nodes, err := g.host.tree(ctx, projectPath(owner, repo), ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository tree from GitLab: %w", err)
	}

	files := make([]FileInfo, 0, len(nodes))
	for _, node := range nodes {
		if node.Type != "blob" {
			continue
		}
		files = append(files, FileInfo{
			Path: node.Path,
			Name: path.Base(node.Path),
			SHA:  node.ID,
		})
	}
	return files, nil
}

// GetFileContent returns the decoded content of the file at p. The files API
// requires a ref, so an empty ref is resolved to the default branch first.
func (g *GitLabClient) GetFileContent(ctx context.Context, owner, repo, ref, p string) (string, error) {
	ref, err := resolveRef(ctx, g, owner, repo, ref)
	if err != nil {
		return "", err
	}

	file, err := g.host.file(ctx, projectPath(owner, repo), ref, p)
	if err != nil {
		return "", fmt.Errorf("failed to get file content from GitLab: %w", err)
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, p)
	}
	if file.Encoding != "" && file.Encoding != "base64" {
		return file.Content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return string(decoded), nil
}

func projectPath(owner, repo string) string {
	return owner + "/" + repo
}
