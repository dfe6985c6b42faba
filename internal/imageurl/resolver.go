package imageurl

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// 本系统生成的文件名：{slug}_{w}x{h}
	generatedStem = regexp.MustCompile(`^(.+)_(\d+)x(\d+)$`)
	// 改变尺寸后的编辑段：{editSlug}-{w}x{h}
	editedStem = regexp.MustCompile(`^(.+)-(\d+)x(\d+)$`)
)

// ParsedImage 从文件名中解析出的信息
type ParsedImage struct {
	Slug        string
	Description string
	Width       int
	Height      int
	Format      Format
}

// ExtractDescriptionAndDimensions 解析路径（或 URL）最后一段 {slug}_{w}x{h}.{format}
func ExtractDescriptionAndDimensions(resourcePath string) (*ParsedImage, error) {
	name := path.Base(resourcePath)
	ext := path.Ext(name)
	if ext == "" {
		return nil, fmt.Errorf("%w: %q has no extension", ErrUnrecognizedPath, resourcePath)
	}
	format, err := ParseFormat(strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}

	m := generatedStem.FindStringSubmatch(strings.TrimSuffix(name, ext))
	if m == nil {
		return nil, fmt.Errorf("%w: %q does not match {description}_{w}x{h}.{format}", ErrUnrecognizedPath, name)
	}
	width, height, err := parseDimensions(m[2], m[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	return &ParsedImage{
		Slug:        m[1],
		Description: humanize(m[1]),
		Width:       width,
		Height:      height,
		Format:      format,
	}, nil
}

// EditSource 被编辑的源图
type EditSource struct {
	Project string
	// 不含扩展名的资源路径，编辑段追加在其后
	BasePath    string
	Description string
	Width       int
	Height      int
	// 源文件扩展名（png、jpg、webp、gif ...），可能为空
	Extension string
}

// OutputFormat 编辑结果默认沿用源图格式；webp/gif 等不支持输出的格式回落为 png
func (s *EditSource) OutputFormat() Format {
	if f, err := ParseFormat(s.Extension); err == nil {
		return f
	}
	return FormatPNG
}

// ResolveEditSource 解析一个已有图片 URL 作为编辑源。
// URL 必须位于 imageBase 指定的图片域名下，避免对任意第三方地址构造轮询或编辑请求。
// localPath 可选：非本系统生成的图片可以从本地副本读取真实尺寸。
func ResolveEditSource(rawURL, imageBase, localPath string) (*EditSource, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid image url %q: %w", rawURL, err)
	}
	base, err := url.Parse(imageBase)
	if err != nil {
		return nil, fmt.Errorf("invalid image host %q: %w", imageBase, err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return nil, fmt.Errorf("%w: %s", ErrForeignHost, u.Host)
	}

	rel := u.Path
	if prefix := strings.TrimRight(base.Path, "/"); prefix != "" {
		if !strings.HasPrefix(rel, prefix+"/") {
			return nil, fmt.Errorf("%w: %s", ErrForeignHost, rawURL)
		}
		rel = strings.TrimPrefix(rel, prefix)
	}
	return sourceFromPath(rel, localPath)
}

// ResolveUploadedSource 以上传接口返回的路径作为编辑源，尺寸取自本地文件
func ResolveUploadedSource(uploadedPath, localPath string) (*EditSource, error) {
	return sourceFromPath(uploadedPath, localPath)
}

func sourceFromPath(rel, localPath string) (*EditSource, error) {
	segments := strings.Split(strings.Trim(rel, "/"), "/")
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedPath, rel)
	}
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return nil, fmt.Errorf("%w: %q", ErrUnrecognizedPath, rel)
		}
	}
	if err := ValidateProject(segments[0]); err != nil {
		return nil, err
	}

	last := segments[len(segments)-1]
	ext := path.Ext(last)
	stem := strings.TrimSuffix(last, ext)
	if stem == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedPath, rel)
	}

	src := &EditSource{
		Project:   segments[0],
		BasePath:  strings.Join(append(segments[:len(segments)-1:len(segments)-1], stem), "/"),
		Extension: strings.ToLower(strings.TrimPrefix(ext, ".")),
	}

	// chain[0] 是原图（生成或上传），之后每一段都是一次编辑
	chain := append(segments[1:len(segments)-1:len(segments)-1], stem)

	// 尺寸取离文件最近的、带 "-{w}x{h}" 的编辑段
	sized := false
	for i := len(chain) - 1; i >= 1; i-- {
		if e := editedStem.FindStringSubmatch(chain[i]); e != nil {
			w, h, err := parseDimensions(e[2], e[3])
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, rel)
			}
			src.Width, src.Height = w, h
			sized = true
			break
		}
	}

	// 本系统生成的原图：描述与原始尺寸来自文件名
	if m := generatedStem.FindStringSubmatch(chain[0]); m != nil {
		src.Description = humanize(m[1])
		if !sized {
			w, h, err := parseDimensions(m[2], m[3])
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, rel)
			}
			src.Width, src.Height = w, h
		}
		return src, nil
	}

	// 外部上传的图片：文件名即描述，尺寸取本地文件或默认值
	src.Description = humanize(Canonicalize(chain[0]))
	if !sized {
		src.Width, src.Height = localDimensions(localPath)
	}
	return src, nil
}

// localDimensions 读取本地图片尺寸并限制在允许范围内；读取失败时返回默认尺寸
func localDimensions(localPath string) (int, int) {
	if localPath == "" {
		return DefaultWidth, DefaultHeight
	}
	img, err := imaging.Open(localPath)
	if err != nil {
		return DefaultWidth, DefaultHeight
	}
	b := img.Bounds()
	return clampDimension(b.Dx()), clampDimension(b.Dy())
}

func clampDimension(v int) int {
	if v < MinDimension {
		return MinDimension
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

// parseDimensions 解析文件名中的宽高，数字无法解析（如溢出）时视为无法识别的路径
func parseDimensions(w, h string) (int, int, error) {
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, ErrUnrecognizedPath
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, ErrUnrecognizedPath
	}
	return width, height, nil
}
