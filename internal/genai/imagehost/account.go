package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"imagehost-mcp/common"
)

// ListProjects GET /account/projects，同时返回解析后的项目列表与原始 JSON
func (c *Client) ListProjects(ctx context.Context) ([]Project, json.RawMessage, error) {
	common.WithField("endpoint", c.baseURL+"/account/projects").Debug("Listing ImageHost projects")

	body, err := c.doJSON(ctx, http.MethodGet, "/account/projects", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects, err := parseProjects(body)
	if err != nil {
		common.WithError(err).WithField("body", string(body)).Warn("Failed to parse ImageHost project list")
		return nil, body, fmt.Errorf("failed to parse project list: %w", err)
	}
	return projects, body, nil
}

func parseProjects(body []byte) ([]Project, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []Project
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var resp projectsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// CreateProject POST /account/projects
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.Project) == "" {
		return nil, fmt.Errorf("project is required")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, fmt.Errorf("displayName is required")
	}

	common.WithFields(map[string]interface{}{
		"project":      req.Project,
		"display_name": req.DisplayName,
	}).Info("Creating ImageHost project")

	body, err := c.doJSON(ctx, http.MethodPost, "/account/projects", req)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	var resp createProjectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse create project response: %w", err)
	}
	if !resp.Success || len(resp.Project) == 0 || string(resp.Project) == "null" {
		common.WithField("body", string(body)).Error("ImageHost create-project response missing success or project")
		return nil, fmt.Errorf("create project was not successful: %s", string(body))
	}

	return body, nil
}

// GetProject GET /account/projects/{projectId}
func (c *Client) GetProject(ctx context.Context, projectID string) (json.RawMessage, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	body, err := c.doJSON(ctx, http.MethodGet, "/account/projects/"+url.PathEscape(projectID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}
	return body, nil
}

// GetPlanUsage GET /account/plan-usage
func (c *Client) GetPlanUsage(ctx context.Context) (json.RawMessage, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/account/plan-usage", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan usage: %w", err)
	}
	return body, nil
}

// GetCurrentPlan GET /account/current-plan
func (c *Client) GetCurrentPlan(ctx context.Context) (json.RawMessage, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/account/current-plan", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get current plan: %w", err)
	}
	return body, nil
}
