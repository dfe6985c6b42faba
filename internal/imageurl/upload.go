package imageurl

import (
	"fmt"
	"path/filepath"
	"strings"
)

// 允许上传的扩展名，值为归一化后的扩展名
var uploadExtensions = map[string]string{
	"png":  "png",
	"jpg":  "jpg",
	"jpeg": "jpg",
	"webp": "webp",
	"gif":  "gif",
}

// UploadExtension 校验上传文件扩展名（不区分大小写），返回归一化结果（jpeg -> jpg）
func UploadExtension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	normalized, ok := uploadExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedUploadType, filepath.Base(filename))
	}
	return normalized, nil
}

// UploadSlug 上传时使用的 slug：优先使用 prompt，否则取文件名（不含扩展名）
func UploadSlug(filename, prompt string) (string, error) {
	text := prompt
	if strings.TrimSpace(text) == "" {
		base := filepath.Base(filename)
		text = strings.TrimSuffix(base, filepath.Ext(base))
	}
	slug := CanonicalizeDescription(text)
	if slug == "" {
		return "", fmt.Errorf("upload %q: %w", filepath.Base(filename), ErrEmptySlug)
	}
	return slug, nil
}
