package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imagehost-mcp/internal/genai/imagehost"
	"imagehost-mcp/internal/imageurl"
)

// ErrUnknownUseCase 没有匹配的尺寸预设
var ErrUnknownUseCase = errors.New("no dimension preset for use case")

// ListProjects 返回账号下的项目（原始 JSON）
func (s *ImageService) ListProjects(ctx context.Context) (json.RawMessage, error) {
	_, raw, err := s.api.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateProject 创建项目；项目名会出现在资源路径中，需满足路径段规则
func (s *ImageService) CreateProject(ctx context.Context, req imagehost.CreateProjectRequest) (json.RawMessage, error) {
	req.Project = strings.TrimSpace(req.Project)
	if err := imageurl.ValidateProject(req.Project); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		req.DisplayName = req.Project
	}
	return s.api.CreateProject(ctx, req)
}

// GetProject 查询项目详情；projectID 为空时查询当前默认项目
func (s *ImageService) GetProject(ctx context.Context, projectID string) (json.RawMessage, error) {
	project, err := s.ResolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.api.GetProject(ctx, project)
}

// GetUsage 当前计费周期的用量
func (s *ImageService) GetUsage(ctx context.Context) (json.RawMessage, error) {
	return s.api.GetPlanUsage(ctx)
}

// GetPlan 当前套餐
func (s *ImageService) GetPlan(ctx context.Context) (json.RawMessage, error) {
	return s.api.GetCurrentPlan(ctx)
}

// ListImages 最近生成的图片，project 为空时不过滤
func (s *ImageService) ListImages(ctx context.Context, limit int, project string) (json.RawMessage, error) {
	project = strings.TrimSpace(project)
	if project != "" {
		if err := imageurl.ValidateProject(project); err != nil {
			return nil, err
		}
	}
	return s.api.ListImages(ctx, limit, project)
}

// RecommendedDimensions 查找用途对应的推荐尺寸；useCase 为空时返回全部预设
func (s *ImageService) RecommendedDimensions(useCase string) ([]imageurl.Preset, error) {
	if strings.TrimSpace(useCase) == "" {
		return imageurl.Presets(), nil
	}
	p, ok := imageurl.LookupPreset(useCase)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUseCase, useCase)
	}
	return []imageurl.Preset{p}, nil
}
