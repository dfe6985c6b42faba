// Package service 编排一次工具调用需要的全部步骤：确定项目、构造资源路径、
// 轮询生成结果、写入本地文件与镜像存储。每个操作都返回 (结果, error)，
// 由 MCP 层统一决定如何呈现错误。
package service

import (
	"context"
	"strings"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/genai/imagehost"
	"imagehost-mcp/internal/imageurl"
	"imagehost-mcp/internal/oss"
	"imagehost-mcp/internal/poller"
)

// FallbackProject 账号下没有任何项目时使用的项目名
const FallbackProject = "default"

// JobPoller 等待生成任务完成
type JobPoller interface {
	Poll(ctx context.Context, resourcePath string) (*poller.Result, error)
}

// Options 服务配置
type Options struct {
	ImageBaseURL string
	// 配置中指定的默认项目，优先于账号默认项目
	DefaultProject string

	// Mirror 为空时不做镜像
	Mirror        oss.OSSIface
	MirrorBucket  string
	MirrorExpires int64
}

// ImageService 图片生成与账号查询
type ImageService struct {
	api    imagehost.ImageHostIface
	poller JobPoller

	imageBase      string
	defaultProject string

	mirror        oss.OSSIface
	mirrorBucket  string
	mirrorExpires int64
}

// New 创建服务
func New(api imagehost.ImageHostIface, p JobPoller, opts Options) *ImageService {
	imageBase := opts.ImageBaseURL
	if imageBase == "" {
		imageBase = common.DefaultImageBaseURL
	}
	return &ImageService{
		api:            api,
		poller:         p,
		imageBase:      strings.TrimRight(imageBase, "/"),
		defaultProject: strings.TrimSpace(opts.DefaultProject),
		mirror:         opts.Mirror,
		mirrorBucket:   opts.MirrorBucket,
		mirrorExpires:  opts.MirrorExpires,
	}
}

// ImageBaseURL 返回图片域名
func (s *ImageService) ImageBaseURL() string {
	return s.imageBase
}

// ResolveProject 按以下顺序确定项目：
// 显式参数 > 配置的默认项目 > 账号中标记为默认的项目 > 账号第一个项目 > "default"。
// 查询项目列表失败不视为错误，直接使用 "default"。
func (s *ImageService) ResolveProject(ctx context.Context, explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		if err := imageurl.ValidateProject(p); err != nil {
			return "", err
		}
		return p, nil
	}
	if s.defaultProject != "" {
		return s.defaultProject, nil
	}

	projects, _, err := s.api.ListProjects(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		common.WithError(err).Warn("Failed to list projects, using fallback project")
		return FallbackProject, nil
	}

	for _, p := range projects {
		if p.IsDefault && imageurl.ValidateProject(p.ID) == nil {
			return p.ID, nil
		}
	}
	for _, p := range projects {
		if imageurl.ValidateProject(p.ID) == nil {
			return p.ID, nil
		}
	}
	return FallbackProject, nil
}
