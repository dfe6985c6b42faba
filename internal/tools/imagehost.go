package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/genai/imagehost"
	"imagehost-mcp/internal/imageurl"
	"imagehost-mcp/internal/poller"
	"imagehost-mcp/internal/service"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ImageOperations MCP 工具依赖的操作集合，由 service.ImageService 实现
type ImageOperations interface {
	BuildURL(ctx context.Context, req service.ImageRequest) (*service.ImageLocation, error)
	Generate(ctx context.Context, req service.ImageRequest) (*service.ImageResult, error)
	GenerateWithDefaults(ctx context.Context, description, project string) (*service.ImageResult, error)
	Edit(ctx context.Context, req service.EditRequest) (*service.ImageResult, error)

	ListProjects(ctx context.Context) (json.RawMessage, error)
	CreateProject(ctx context.Context, req imagehost.CreateProjectRequest) (json.RawMessage, error)
	GetProject(ctx context.Context, projectID string) (json.RawMessage, error)
	GetUsage(ctx context.Context) (json.RawMessage, error)
	GetPlan(ctx context.Context) (json.RawMessage, error)
	ListImages(ctx context.Context, limit int, project string) (json.RawMessage, error)
	RecommendedDimensions(useCase string) ([]imageurl.Preset, error)
}

type imageHostHandlers struct {
	ops ImageOperations
}

// RegisterImageHostTools 注册图片生成、编辑与账号查询的 MCP tools
func RegisterImageHostTools(s *server.MCPServer, ops ImageOperations) error {
	if ops == nil {
		return errors.New("image operations are required")
	}
	h := &imageHostHandlers{ops: ops}

	s.AddTool(mcp.NewTool(
		"build_image_url",
		mcp.WithDescription("Build the deterministic image URL, resource path and <img> HTML for a description without waiting for generation. The image is generated on first request of the URL."),
		descriptionArg(),
		projectArg(),
		widthArg(),
		heightArg(),
		formatArg(),
	), h.buildImageURL)

	s.AddTool(mcp.NewTool(
		"generate_image",
		mcp.WithDescription("Generate an image from a text description and wait until it is ready (up to about 3 minutes). Returns the image together with its URL and HTML snippet."),
		descriptionArg(),
		projectArg(),
		widthArg(),
		heightArg(),
		formatArg(),
		outputPathArg(),
	), h.generateImage)

	s.AddTool(mcp.NewTool(
		"quick_generate_image",
		mcp.WithDescription("Generate a 1024x1024 PNG image from a text description using the default project."),
		descriptionArg(),
		projectArg(),
	), h.quickGenerateImage)

	s.AddTool(mcp.NewTool(
		"edit_image",
		mcp.WithDescription("Edit an existing image with a natural language instruction. The source is either an image URL on the image host or a local file, which is uploaded first."),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("How to change the image, e.g. \"make it blue\""),
		),
		mcp.WithString("image_url",
			mcp.Description("URL of an image served by the image host"),
		),
		mcp.WithString("file_path",
			mcp.Description("Local image file (png, jpg, jpeg, webp, gif). Uploaded when image_url is empty, otherwise only used to read the source dimensions"),
		),
		mcp.WithString("project",
			mcp.Description("Project used when uploading a local file"),
		),
		mcp.WithNumber("width",
			mcp.Description("New width in pixels (100-4096), defaults to the source width"),
		),
		mcp.WithNumber("height",
			mcp.Description("New height in pixels (100-4096), defaults to the source height"),
		),
		mcp.WithString("format",
			mcp.Description("Output format, defaults to the source format"),
			mcp.Enum("png", "jpg"),
		),
		outputPathArg(),
	), h.editImage)

	s.AddTool(mcp.NewTool(
		"list_projects",
		mcp.WithDescription("List the projects of the account."),
	), h.listProjects)

	s.AddTool(mcp.NewTool(
		"create_project",
		mcp.WithDescription("Create a new project. The project id becomes the first segment of every image path."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project id: letters, digits, '-' and '_'"),
		),
		mcp.WithString("display_name",
			mcp.Description("Human readable name, defaults to the project id"),
		),
		mcp.WithString("description",
			mcp.Description("Optional project description"),
		),
		mcp.WithBoolean("is_default",
			mcp.Description("Make this the account default project"),
		),
	), h.createProject)

	s.AddTool(mcp.NewTool(
		"get_project",
		mcp.WithDescription("Get project details. Without a project id the default project is used."),
		mcp.WithString("project",
			mcp.Description("Project id"),
		),
	), h.getProject)

	s.AddTool(mcp.NewTool(
		"get_plan_usage",
		mcp.WithDescription("Get image generation usage for the current billing period."),
	), h.getPlanUsage)

	s.AddTool(mcp.NewTool(
		"get_current_plan",
		mcp.WithDescription("Get the current subscription plan and its limits."),
	), h.getCurrentPlan)

	s.AddTool(mcp.NewTool(
		"list_images",
		mcp.WithDescription("List recently generated images."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of images (1-100, default 20)"),
		),
		mcp.WithString("project",
			mcp.Description("Only list images of this project"),
		),
	), h.listImages)

	s.AddTool(mcp.NewTool(
		"get_recommended_dimensions",
		mcp.WithDescription("Get recommended width and height for a use case such as hero, blog-header, og-image or instagram-post. Without a use case all presets are returned."),
		mcp.WithString("use_case",
			mcp.Description("Where the image will be used"),
		),
	), h.getRecommendedDimensions)

	return nil
}

func descriptionArg() mcp.ToolOption {
	return mcp.WithString("description",
		mcp.Required(),
		mcp.Description("Text description of the image; it also becomes the URL slug"),
	)
}

func projectArg() mcp.ToolOption {
	return mcp.WithString("project",
		mcp.Description("Project id; defaults to the configured or account default project"),
	)
}

func widthArg() mcp.ToolOption {
	return mcp.WithNumber("width",
		mcp.Description("Width in pixels (100-4096, default 1024)"),
	)
}

func heightArg() mcp.ToolOption {
	return mcp.WithNumber("height",
		mcp.Description("Height in pixels (100-4096, default 1024)"),
	)
}

func formatArg() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Image format (default png)"),
		mcp.Enum("png", "jpg"),
	)
}

func outputPathArg() mcp.ToolOption {
	return mcp.WithString("output_path",
		mcp.Description("Optional local file or directory to save the image to"),
	)
}

// newCall 为每次工具调用分配 request id
func newCall(tool string) *logrus.Entry {
	return common.WithRequestID(uuid.NewString()).WithField("tool", tool)
}

// toolError 记录日志并转换为工具错误结果
func toolError(logger *logrus.Entry, action string, err error) *mcp.CallToolResult {
	logger.WithError(err).Error("Tool call failed")
	msg := fmt.Sprintf("failed to %s: %v", action, err)
	if errors.Is(err, poller.ErrTimeout) {
		msg += ". The image may still finish; call again later with the same parameters to fetch it."
	}
	return mcp.NewToolResultError(msg)
}

func imageRequest(req mcp.CallToolRequest) (service.ImageRequest, error) {
	description, err := req.RequireString("description")
	if err != nil {
		return service.ImageRequest{}, fmt.Errorf("description parameter is required: %w", err)
	}
	return service.ImageRequest{
		Description: description,
		Project:     req.GetString("project", ""),
		Width:       req.GetInt("width", 0),
		Height:      req.GetInt("height", 0),
		Format:      req.GetString("format", ""),
		OutputPath:  req.GetString("output_path", ""),
	}, nil
}

func (h *imageHostHandlers) buildImageURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("build_image_url")

	imgReq, err := imageRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loc, err := h.ops.BuildURL(ctx, imgReq)
	if err != nil {
		return toolError(logger, "build image url", err), nil
	}

	logger.WithField("path", loc.Path).Info("Image URL built")
	return mcp.NewToolResultText(formatLocation("Image URL", loc)), nil
}

func (h *imageHostHandlers) generateImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("generate_image")

	imgReq, err := imageRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := h.ops.Generate(ctx, imgReq)
	if err != nil {
		return toolError(logger, "generate image", err), nil
	}

	logger.WithFields(map[string]interface{}{
		"path":     result.Path,
		"attempts": result.Attempts,
	}).Info("Image generated")
	return imageResult("Generated image", result), nil
}

func (h *imageHostHandlers) quickGenerateImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("quick_generate_image")

	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("description parameter is required: %v", err)), nil
	}

	result, err := h.ops.GenerateWithDefaults(ctx, description, req.GetString("project", ""))
	if err != nil {
		return toolError(logger, "generate image", err), nil
	}

	logger.WithField("path", result.Path).Info("Image generated")
	return imageResult("Generated image", result), nil
}

func (h *imageHostHandlers) editImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("edit_image")

	instruction, err := req.RequireString("instruction")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("instruction parameter is required: %v", err)), nil
	}

	result, err := h.ops.Edit(ctx, service.EditRequest{
		ImageURL:    req.GetString("image_url", ""),
		FilePath:    req.GetString("file_path", ""),
		Instruction: instruction,
		Project:     req.GetString("project", ""),
		Width:       req.GetInt("width", 0),
		Height:      req.GetInt("height", 0),
		Format:      req.GetString("format", ""),
		OutputPath:  req.GetString("output_path", ""),
	})
	if err != nil {
		return toolError(logger, "edit image", err), nil
	}

	logger.WithFields(map[string]interface{}{
		"source": result.SourcePath,
		"path":   result.Path,
	}).Info("Image edited")
	return imageResult("Edited image", result), nil
}

func (h *imageHostHandlers) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("list_projects")
	raw, err := h.ops.ListProjects(ctx)
	if err != nil {
		return toolError(logger, "list projects", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("create_project")

	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project parameter is required: %v", err)), nil
	}

	createReq := imagehost.CreateProjectRequest{
		Project:     project,
		DisplayName: req.GetString("display_name", ""),
		Description: req.GetString("description", ""),
	}
	if _, ok := req.GetArguments()["is_default"]; ok {
		isDefault := req.GetBool("is_default", false)
		createReq.IsDefault = &isDefault
	}

	raw, err := h.ops.CreateProject(ctx, createReq)
	if err != nil {
		return toolError(logger, "create project", err), nil
	}
	logger.WithField("project", project).Info("Project created")
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) getProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("get_project")
	raw, err := h.ops.GetProject(ctx, req.GetString("project", ""))
	if err != nil {
		return toolError(logger, "get project", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) getPlanUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("get_plan_usage")
	raw, err := h.ops.GetUsage(ctx)
	if err != nil {
		return toolError(logger, "get plan usage", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) getCurrentPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("get_current_plan")
	raw, err := h.ops.GetPlan(ctx)
	if err != nil {
		return toolError(logger, "get current plan", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) listImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("list_images")
	raw, err := h.ops.ListImages(ctx, req.GetInt("limit", 0), req.GetString("project", ""))
	if err != nil {
		return toolError(logger, "list images", err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (h *imageHostHandlers) getRecommendedDimensions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := newCall("get_recommended_dimensions")

	presets, err := h.ops.RecommendedDimensions(req.GetString("use_case", ""))
	if err != nil {
		return toolError(logger, "get recommended dimensions", err), nil
	}

	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return toolError(logger, "encode presets", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func formatLocation(title string, loc *service.ImageLocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", title, loc.URL)
	fmt.Fprintf(&b, "Path: %s\n", loc.Path)
	fmt.Fprintf(&b, "Size: %dx%d %s\n", loc.Width, loc.Height, loc.Format)
	fmt.Fprintf(&b, "HTML: %s", loc.HTML)
	return b.String()
}

// imageResult 返回图片内容以及 URL、路径、HTML 等文本说明
func imageResult(title string, result *service.ImageResult) *mcp.CallToolResult {
	text := formatLocation(title, &result.ImageLocation)
	if result.SourcePath != "" {
		text += "\nSource: " + result.SourcePath
	}
	if result.SavedTo != "" {
		text += "\nSaved to: " + result.SavedTo
	}
	if result.MirrorURL != "" {
		text += "\nMirror: " + result.MirrorURL
	}
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(result.Data), result.MIMEType)
}
