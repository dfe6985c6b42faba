package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imagehost-mcp/common"
)

// 默认请求超时时间（单次 HTTP 调用）
const defaultTimeout = 60 * time.Second

// Client 远程图片服务客户端：账号/项目/用量查询、图片列表、上传，以及生成任务的状态查询。
// 所有请求都带 Authorization: Bearer <apiKey>。
type Client struct {
	httpClient *http.Client

	baseURL string
	apiKey  string
	timeout time.Duration
}

// Config 客户端配置
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// 可选：自定义 HTTP 客户端（测试或代理场景）
	HTTPClient *http.Client
}

// NewImageHostClientFromConfig 从通用配置创建客户端
func NewImageHostClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		BaseURL: cfg.APIBaseURL,
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

// NewClient 创建客户端；缺少凭证时直接返回错误
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("imagehost base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("imagehost API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
	}, nil
}

// doJSON 发送 JSON 请求，非 2xx 状态返回 *APIError
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	status, respBody, err := c.send(ctx, method, path, reader, "application/json")
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		common.WithFields(map[string]interface{}{
			"status_code": status,
			"url":         c.baseURL + path,
			"body":        string(respBody),
		}).Error("ImageHost API returned non-success status")
		return nil, &APIError{StatusCode: status, Body: string(respBody)}
	}

	return respBody, nil
}

// send 统一封装 HTTP 请求逻辑，只返回传输层错误，状态码交由调用方判断
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (int, []byte, error) {
	url := c.baseURL + path

	// 为单次请求设置超时
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
