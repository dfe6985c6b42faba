package imagehost

import (
	"context"
	"encoding/json"

	"imagehost-mcp/internal/poller"
)

type ImageHostIface interface {
	poller.StatusFetcher

	ListProjects(ctx context.Context) ([]Project, json.RawMessage, error)
	CreateProject(ctx context.Context, req CreateProjectRequest) (json.RawMessage, error)
	GetProject(ctx context.Context, projectID string) (json.RawMessage, error)
	GetPlanUsage(ctx context.Context) (json.RawMessage, error)
	GetCurrentPlan(ctx context.Context) (json.RawMessage, error)
	// ListImages 列出最近生成的图片；projectID 为空时不按项目过滤
	ListImages(ctx context.Context, limit int, projectID string) (json.RawMessage, error)
	// UploadImage 上传本地图片，返回可用于后续编辑的资源路径
	UploadImage(ctx context.Context, req UploadRequest) (*UploadResult, error)
}
