package imagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/poller"
	"imagehost-mcp/internal/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListImages GET /content/images?limit={n}[&projectId={id}]
func (c *Client) ListImages(ctx context.Context, limit int, projectID string) (json.RawMessage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if projectID != "" {
		query.Set("projectId", projectID)
	}

	body, err := c.doJSON(ctx, http.MethodGet, "/content/images?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return body, nil
}

// FetchStatus GET /content/request-json/{resourcePath}。
// 资源路径本身就是生成任务的标识；这里不判断状态码，交给轮询器解释。
func (c *Client) FetchStatus(ctx context.Context, resourcePath string) (*poller.StatusResponse, error) {
	path := "/content/request-json/" + strings.TrimLeft(resourcePath, "/")

	status, body, err := c.send(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"resource_path": resourcePath,
		"status_code":   status,
		"body":          utils.TruncateForLog(string(body), 200),
	}).Debug("ImageHost status poll response")

	return &poller.StatusResponse{StatusCode: status, Body: body}, nil
}
