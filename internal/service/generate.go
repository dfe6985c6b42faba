package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/genai/imagehost"
	"imagehost-mcp/internal/imageurl"
	"imagehost-mcp/internal/utils"
)

// ErrMissingEditSource 编辑时既没有图片 URL 也没有本地文件
var ErrMissingEditSource = errors.New("either image_url or file_path is required")

// BuildURL 只计算资源路径、URL 与 HTML，不触发生成
func (s *ImageService) BuildURL(ctx context.Context, req ImageRequest) (*ImageLocation, error) {
	spec, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.locate(spec)
}

// Generate 构造资源路径并等待远程生成完成
func (s *ImageService) Generate(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	spec, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	loc, err := s.locate(spec)
	if err != nil {
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"project": loc.Project,
		"path":    loc.Path,
	}).Info("Generating image")

	return s.materialize(ctx, *loc, req.OutputPath)
}

// GenerateWithDefaults 使用 1024x1024 png 生成
func (s *ImageService) GenerateWithDefaults(ctx context.Context, description, project string) (*ImageResult, error) {
	return s.Generate(ctx, ImageRequest{
		Description: description,
		Project:     project,
		Width:       imageurl.DefaultWidth,
		Height:      imageurl.DefaultHeight,
		Format:      string(imageurl.FormatPNG),
	})
}

// Edit 在已有图片（或先上传的本地图片）上追加编辑指令并等待结果
func (s *ImageService) Edit(ctx context.Context, req EditRequest) (*ImageResult, error) {
	// 所有参数校验都在网络请求之前完成
	if imageurl.Canonicalize(req.Instruction) == "" {
		return nil, fmt.Errorf("edit instruction %q: %w", req.Instruction, imageurl.ErrEmptySlug)
	}
	if err := validateOptionalDimensions(req.Width, req.Height); err != nil {
		return nil, err
	}
	var format imageurl.Format
	if strings.TrimSpace(req.Format) != "" {
		f, err := imageurl.ParseFormat(req.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	imageURL := strings.TrimSpace(req.ImageURL)
	filePath := strings.TrimSpace(req.FilePath)

	var (
		src *imageurl.EditSource
		err error
	)
	switch {
	case imageURL != "":
		src, err = imageurl.ResolveEditSource(imageURL, s.imageBase, filePath)
	case filePath != "":
		src, err = s.uploadSource(ctx, filePath, req.Project)
	default:
		return nil, ErrMissingEditSource
	}
	if err != nil {
		return nil, err
	}

	target, err := imageurl.BuildEditPath(src, req.Instruction, req.Width, req.Height, format)
	if err != nil {
		return nil, err
	}

	url := imageurl.BuildImageURL(s.imageBase, target.Path)
	loc := ImageLocation{
		Project: src.Project,
		Path:    target.Path,
		URL:     url,
		HTML: imageurl.BuildHTML(imageurl.ImageSpec{
			Description: src.Description + " " + req.Instruction,
			Width:       target.Width,
			Height:      target.Height,
		}, url),
		Width:  target.Width,
		Height: target.Height,
		Format: target.Format,
	}

	common.WithFields(map[string]interface{}{
		"source": src.BasePath,
		"path":   loc.Path,
	}).Info("Editing image")

	result, err := s.materialize(ctx, loc, req.OutputPath)
	if err != nil {
		return nil, err
	}
	result.SourcePath = src.BasePath
	if src.Extension != "" {
		result.SourcePath += "." + src.Extension
	}
	return result, nil
}

// uploadSource 上传本地文件并以返回的路径作为编辑源
func (s *ImageService) uploadSource(ctx context.Context, filePath, project string) (*imageurl.EditSource, error) {
	if _, err := imageurl.UploadExtension(filePath); err != nil {
		return nil, err
	}
	if _, err := imageurl.UploadSlug(filePath, ""); err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("upload file %s is a directory", filePath)
	}

	project, err = s.ResolveProject(ctx, project)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.api.UploadImage(ctx, imagehost.UploadRequest{Project: project, FilePath: filePath})
	if err != nil {
		return nil, err
	}
	return imageurl.ResolveUploadedSource(uploaded.UploadedPath, filePath)
}

// prepare 补全默认值并校验参数；项目最后确定，参数不合法时不会发起网络请求
func (s *ImageService) prepare(ctx context.Context, req ImageRequest) (imageurl.ImageSpec, error) {
	width, height := req.Width, req.Height
	if width == 0 {
		width = imageurl.DefaultWidth
	}
	if height == 0 {
		height = imageurl.DefaultHeight
	}
	format := imageurl.FormatPNG
	if strings.TrimSpace(req.Format) != "" {
		f, err := imageurl.ParseFormat(req.Format)
		if err != nil {
			return imageurl.ImageSpec{}, err
		}
		format = f
	}
	if err := imageurl.ValidateDimensions(width, height); err != nil {
		return imageurl.ImageSpec{}, err
	}
	if imageurl.CanonicalizeDescription(req.Description) == "" {
		return imageurl.ImageSpec{}, fmt.Errorf("description %q: %w", req.Description, imageurl.ErrEmptySlug)
	}

	project, err := s.ResolveProject(ctx, req.Project)
	if err != nil {
		return imageurl.ImageSpec{}, err
	}

	spec := imageurl.ImageSpec{
		Project:     project,
		Description: req.Description,
		Width:       width,
		Height:      height,
		Format:      format,
	}
	return spec, spec.Validate()
}

func (s *ImageService) locate(spec imageurl.ImageSpec) (*ImageLocation, error) {
	p, err := imageurl.BuildImagePath(spec)
	if err != nil {
		return nil, err
	}
	url := imageurl.BuildImageURL(s.imageBase, p)
	return &ImageLocation{
		Project: spec.Project,
		Path:    p,
		URL:     url,
		HTML:    imageurl.BuildHTML(spec, url),
		Width:   spec.Width,
		Height:  spec.Height,
		Format:  spec.Format,
	}, nil
}

// materialize 等待生成完成，然后按需写入本地文件和镜像存储
func (s *ImageService) materialize(ctx context.Context, loc ImageLocation, outputPath string) (*ImageResult, error) {
	res, err := s.poller.Poll(ctx, loc.Path)
	if err != nil {
		return nil, err
	}

	result := &ImageResult{
		ImageLocation: loc,
		Data:          res.Data,
		MIMEType:      res.MIMEType,
		Attempts:      res.Attempts,
		Elapsed:       res.Elapsed,
	}
	if result.MIMEType == "" {
		result.MIMEType = utils.MimeTypeFromExtension(string(loc.Format))
	}

	if strings.TrimSpace(outputPath) != "" {
		saved, err := writeOutput(outputPath, loc.Path, result.MIMEType, res.Data)
		if err != nil {
			return nil, err
		}
		result.SavedTo = saved
	}

	if s.mirror != nil {
		key := utils.MirrorKey(loc.Path)
		mirrorURL, err := s.mirror.UploadFileWithURL(ctx, s.mirrorBucket, key, bytes.NewReader(res.Data), result.MIMEType, s.mirrorExpires)
		if err != nil {
			// 镜像失败不影响本次生成结果
			common.WithError(err).WithField("key", key).Warn("Failed to mirror image to OSS")
		} else {
			result.MirrorURL = mirrorURL
		}
	}

	return result, nil
}

// writeOutput 写入本地文件；outputPath 是已存在的目录时使用资源路径的文件名，
// 扩展名以实际返回的 MIME 类型为准
func writeOutput(outputPath, resourcePath, mimeType string, data []byte) (string, error) {
	target, err := filepath.Abs(outputPath)
	if err != nil {
		return "", fmt.Errorf("invalid output path %q: %w", outputPath, err)
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, outputFileName(resourcePath, mimeType))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	common.WithFields(map[string]interface{}{
		"file": target,
		"size": len(data),
	}).Info("Image saved to local file")
	return target, nil
}

// outputFileName 资源文件名；远程返回的格式与路径扩展名不一致时替换扩展名
func outputFileName(resourcePath, mimeType string) string {
	name := path.Base(resourcePath)
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	ext := utils.GetExtensionFromMimeType(mimeType)
	if ext == ".png" && mimeType != "image/png" {
		// 未知类型保留原文件名
		return name
	}
	if utils.MimeTypeFromExtension(path.Ext(name)) == utils.MimeTypeFromExtension(ext) {
		return name
	}
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

func validateOptionalDimensions(width, height int) error {
	for _, v := range []int{width, height} {
		if v == 0 {
			continue
		}
		if v < imageurl.MinDimension || v > imageurl.MaxDimension {
			return fmt.Errorf("%w: got %dx%d", imageurl.ErrInvalidDimensions, width, height)
		}
	}
	return nil
}
