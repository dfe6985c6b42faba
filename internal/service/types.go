package service

import (
	"time"

	"imagehost-mcp/internal/imageurl"
)

// ImageRequest 生成或仅构造 URL 的参数。Width/Height 为 0 时使用 1024，Format 为空时使用 png。
type ImageRequest struct {
	Description string
	Project     string
	Width       int
	Height      int
	Format      string
	// OutputPath 非空时把生成结果写入该本地文件
	OutputPath string
}

// EditRequest 编辑已有图片。ImageURL 与 FilePath 至少提供一个：
// 只有 FilePath 时先上传本地文件；两者都有时 FilePath 仅用于读取源图尺寸。
type EditRequest struct {
	ImageURL    string
	FilePath    string
	Instruction string
	// 仅在上传本地文件时使用
	Project string
	// 0 表示沿用源图尺寸
	Width  int
	Height int
	// 为空时沿用源图格式
	Format     string
	OutputPath string
}

// ImageLocation 一张图片的资源路径与访问方式
type ImageLocation struct {
	Project string          `json:"project"`
	Path    string          `json:"path"`
	URL     string          `json:"url"`
	HTML    string          `json:"html"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Format  imageurl.Format `json:"format"`
}

// ImageResult 生成或编辑完成后的图片
type ImageResult struct {
	ImageLocation

	Data     []byte        `json:"-"`
	MIMEType string        `json:"mime_type"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"-"`

	// 源图资源路径，仅编辑时有值
	SourcePath string `json:"source_path,omitempty"`
	// 写入的本地文件
	SavedTo string `json:"saved_to,omitempty"`
	// 镜像存储中的访问地址
	MirrorURL string `json:"mirror_url,omitempty"`
}
