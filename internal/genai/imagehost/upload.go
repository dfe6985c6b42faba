package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/imageurl"
	"imagehost-mcp/internal/utils"
)

// UploadImage 上传本地图片（multipart：file、project、prompt）到 POST /content/upload。
// 扩展名与 slug 在读取文件之前校验，校验失败不会发起任何网络请求。
func (c *Client) UploadImage(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := imageurl.ValidateProject(req.Project); err != nil {
		return nil, err
	}
	ext, err := imageurl.UploadExtension(req.FilePath)
	if err != nil {
		return nil, err
	}
	slug, err := imageurl.UploadSlug(req.FilePath, req.Prompt)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"project": req.Project,
		"file":    filepath.Base(req.FilePath),
		"slug":    slug,
		"size":    len(data),
	}).Info("Uploading image to ImageHost")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.%s"`, slug, ext))
	header.Set("Content-Type", utils.MimeTypeFromExtension(ext))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart file field: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart file field: %w", err)
	}
	if err := writer.WriteField("project", req.Project); err != nil {
		return nil, fmt.Errorf("failed to write multipart project field: %w", err)
	}
	if err := writer.WriteField("prompt", slug); err != nil {
		return nil, fmt.Errorf("failed to write multipart prompt field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	status, body, err := c.send(ctx, http.MethodPost, "/content/upload", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	if status < 200 || status >= 300 {
		common.WithFields(map[string]interface{}{
			"status_code": status,
			"body":        string(body),
		}).Error("ImageHost upload returned non-success status")
		return nil, fmt.Errorf("failed to upload image: %w", &APIError{StatusCode: status, Body: string(body)})
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if !resp.Success || resp.Content == nil || strings.TrimSpace(resp.Content.Prompt) == "" {
		common.WithField("body", string(body)).Error("ImageHost upload response missing success flag or path")
		return nil, fmt.Errorf("upload was not successful: %s", string(body))
	}

	uploaded := normalizeUploadedPath(resp.Content.Prompt, req.Project, ext)
	common.WithField("uploaded_path", uploaded).Info("Image uploaded to ImageHost")

	return &UploadResult{UploadedPath: uploaded, Extension: ext}, nil
}

// normalizeUploadedPath 服务端可能只返回 slug，这里补全为 {project}/{slug}.{ext}
func normalizeUploadedPath(returned, project, ext string) string {
	p := strings.Trim(strings.TrimSpace(returned), "/")
	if !strings.Contains(p, "/") {
		p = project + "/" + p
	}
	if path.Ext(p) == "" {
		p += "." + ext
	}
	return p
}
