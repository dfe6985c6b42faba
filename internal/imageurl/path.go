package imageurl

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	MinDimension = 100
	MaxDimension = 4096

	// DefaultWidth / DefaultHeight 无法得知源图尺寸时使用的默认值
	DefaultWidth  = 1024
	DefaultHeight = 1024
)

// Format 输出图片格式
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
)

// ParseFormat 解析格式字符串（不区分大小写），jpeg 归一为 jpg
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

var projectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ImageSpec 一次生成请求的全部参数
type ImageSpec struct {
	Project         string
	Description     string
	Width           int
	Height          int
	Format          Format
	EditInstruction string
}

// Validate 在任何网络请求之前校验参数
func (s ImageSpec) Validate() error {
	if err := ValidateProject(s.Project); err != nil {
		return err
	}
	if err := ValidateDimensions(s.Width, s.Height); err != nil {
		return err
	}
	if s.Format != FormatPNG && s.Format != FormatJPG {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, s.Format)
	}
	if CanonicalizeDescription(s.Description) == "" {
		return fmt.Errorf("description %q: %w", s.Description, ErrEmptySlug)
	}
	if s.EditInstruction != "" && Canonicalize(s.EditInstruction) == "" {
		return fmt.Errorf("edit instruction %q: %w", s.EditInstruction, ErrEmptySlug)
	}
	return nil
}

// ValidateProject 校验项目命名空间可以安全地作为路径段
func ValidateProject(project string) error {
	if project == "" {
		return ErrEmptyProject
	}
	if !projectPattern.MatchString(project) {
		return fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}
	return nil
}

// ValidateDimensions 校验宽高在 [100, 4096] 范围内
func ValidateDimensions(width, height int) error {
	if width < MinDimension || width > MaxDimension || height < MinDimension || height > MaxDimension {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// BuildImagePath 构造资源路径：
//
//	{project}/{slug}_{width}x{height}.{format}
//	{project}/{slug}_{width}x{height}/{editSlug}.{format}   （带编辑指令时）
func BuildImagePath(spec ImageSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s/%s_%dx%d", spec.Project, CanonicalizeDescription(spec.Description), spec.Width, spec.Height)
	if spec.EditInstruction != "" {
		base += "/" + editInstructionSlug(spec.EditInstruction)
	}
	return base + "." + string(spec.Format), nil
}

// EditTarget 编辑后的目标资源
type EditTarget struct {
	Path     string
	EditSlug string
	Width    int
	Height   int
	Format   Format
}

// BuildEditPath 在源图路径后追加编辑段：{basePath}/{editSlug}.{format}。
// width/height 为 0 表示沿用源图尺寸；尺寸发生变化时 editSlug 追加 "-{w}x{h}"，
// 例如 "Make it Blue" 改宽为 900 得到 make-it-blue-900x600。编辑 slug 不截断。
// 指令本身以 "-{w}x{h}" 结尾时（如 "resize to 300x200"）先去掉该后缀，
// 保证编辑段末尾的尺寸只表示真实尺寸。
func BuildEditPath(src *EditSource, instruction string, width, height int, format Format) (*EditTarget, error) {
	if src == nil || src.BasePath == "" {
		return nil, ErrUnrecognizedPath
	}
	editSlug := editInstructionSlug(instruction)
	if editSlug == "" {
		return nil, fmt.Errorf("edit instruction %q: %w", instruction, ErrEmptySlug)
	}

	if width == 0 {
		width = src.Width
	}
	if height == 0 {
		height = src.Height
	}
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if width != src.Width || height != src.Height {
		editSlug = fmt.Sprintf("%s-%dx%d", editSlug, width, height)
	}

	if format == "" {
		format = src.OutputFormat()
	}
	if format != FormatPNG && format != FormatJPG {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	return &EditTarget{
		Path:     fmt.Sprintf("%s/%s.%s", src.BasePath, editSlug, format),
		EditSlug: editSlug,
		Width:    width,
		Height:   height,
		Format:   format,
	}, nil
}

// BuildImageURL 将资源路径拼接到图片域名（或 API 前缀）之后
func BuildImageURL(base, resourcePath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(resourcePath, "/")
}

// BuildHTML 生成单个自闭合 <img> 标签。src 与 alt 都做 HTML 转义。
func BuildHTML(spec ImageSpec, url string) string {
	alt := humanize(CanonicalizeDescription(spec.Description))
	return fmt.Sprintf(`<img src="%s" alt="%s" width="%d" height="%d" loading="lazy" />`,
		html.EscapeString(url), html.EscapeString(alt), spec.Width, spec.Height)
}

// editInstructionSlug 编辑指令的 slug，去掉结尾所有形如 "-{w}x{h}" 的片段
func editInstructionSlug(instruction string) string {
	slug := Canonicalize(instruction)
	for m := editedStem.FindStringSubmatch(slug); m != nil; m = editedStem.FindStringSubmatch(slug) {
		slug = m[1]
	}
	return slug
}
