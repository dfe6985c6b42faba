package imagehost

import (
	"encoding/json"
	"fmt"
)

// APIError 一次性调用返回非 2xx 状态
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("imagehost api error: status %d, body: %s", e.StatusCode, e.Body)
}

// Project 账号下的项目
type Project struct {
	ID          string `json:"project"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// projectsResponse 兼容两种返回结构：
//
//	{"projects": [{"project": "demo", "isDefault": true}, ...]}
//	[{"project": "demo"}, ...]
type projectsResponse struct {
	Projects []Project `json:"projects"`
}

// CreateProjectRequest POST /account/projects 请求体
type CreateProjectRequest struct {
	Project     string `json:"project"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	IsDefault   *bool  `json:"isDefault,omitempty"`
}

// createProjectResponse 返回中必须包含 success 与 project
type createProjectResponse struct {
	Success bool            `json:"success"`
	Project json.RawMessage `json:"project"`
	Message string          `json:"message,omitempty"`
}

// UploadRequest 上传本地图片
type UploadRequest struct {
	Project  string
	FilePath string
	// Prompt 为空时用文件名生成 slug
	Prompt string
}

// UploadResult 上传成功后返回的资源路径
type UploadResult struct {
	UploadedPath string
	// 归一化后的扩展名（jpeg -> jpg）
	Extension string
}

// uploadResponse POST /content/upload 返回：
//
//	{"success": true, "content": {"prompt": "demo/holiday-snap.jpg"}}
type uploadResponse struct {
	Success bool `json:"success"`
	Content *struct {
		Prompt string `json:"prompt"`
	} `json:"content"`
	Message string `json:"message,omitempty"`
}
