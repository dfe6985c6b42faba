package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagehost-mcp/internal/imageurl"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GuideURI URL 规则说明文档的资源地址
const GuideURI = "imagehost://guide/url-conventions"

// GuideOptions 文档中引用的运行时配置
type GuideOptions struct {
	ImageBase    string
	PollAttempts int
	PollInterval time.Duration
}

// RegisterGuideResource 注册静态参考文档：URL 规则与推荐尺寸
func RegisterGuideResource(s *server.MCPServer, opts GuideOptions) {
	resource := mcp.NewResource(
		GuideURI,
		"Image URL conventions",
		mcp.WithResourceDescription("How image URLs are built from project, description, size and edit instructions, plus recommended dimensions per use case"),
		mcp.WithMIMEType("text/markdown"),
	)

	guide := URLConventionsGuide(opts)
	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GuideURI,
				MIMEType: "text/markdown",
				Text:     guide,
			},
		}, nil
	})
}

// URLConventionsGuide 生成 markdown 格式的说明文档
func URLConventionsGuide(opts GuideOptions) string {
	base := strings.TrimRight(opts.ImageBase, "/")

	var b strings.Builder
	b.WriteString("# Image URL conventions\n\n")
	b.WriteString("Every image is addressed by a resource path. The same path serves the image and its generation status, ")
	b.WriteString("so requesting a URL is enough to start generation.\n\n")

	b.WriteString("## Paths\n\n")
	b.WriteString("```\n")
	b.WriteString("{project}/{slug}_{width}x{height}.{format}\n")
	b.WriteString("{project}/{slug}_{width}x{height}/{edit-slug}.{format}\n")
	b.WriteString("{project}/{slug}_{width}x{height}/{edit-slug}-{width}x{height}.{format}   (edit that changes the size)\n")
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "Full URL: `%s/{path}`\n\n", base)

	b.WriteString("## Rules\n\n")
	fmt.Fprintf(&b, "- Slugs are lowercase; any run of characters outside `a-z0-9` becomes a single `-`. Description slugs are cut at %d characters.\n", imageurl.MaxDescriptionSlugLen)
	fmt.Fprintf(&b, "- Width and height must be between %d and %d pixels.\n", imageurl.MinDimension, imageurl.MaxDimension)
	b.WriteString("- Formats: `png`, `jpg` (`jpeg` is accepted and written as `jpg`).\n")
	b.WriteString("- Uploads accept png, jpg, jpeg, webp and gif. Edits of webp or gif sources are written as png.\n")
	b.WriteString("- A trailing `-{width}x{height}` in an edit instruction is dropped; the size suffix only records a real size change.\n")
	fmt.Fprintf(&b, "- Generation is polled up to %d times, %s apart.\n\n", opts.PollAttempts, opts.PollInterval)

	b.WriteString("## Example\n\n")
	fmt.Fprintf(&b, "`Happy Duck!!` at 800x600 in project `demo`: `%s/demo/happy-duck_800x600.png`\n\n", base)
	fmt.Fprintf(&b, "Editing it with `Make it Blue` and width 900: `%s/demo/happy-duck_800x600/make-it-blue-900x600.png`\n\n", base)

	b.WriteString("## Recommended dimensions\n\n")
	b.WriteString("| Use case | Width | Height | Aspect ratio | Notes |\n")
	b.WriteString("|----------|-------|--------|--------------|-------|\n")
	for _, p := range imageurl.Presets() {
		fmt.Fprintf(&b, "| %s | %d | %d | %s | %s |\n", p.UseCase, p.Width, p.Height, p.AspectRatio, p.Notes)
	}
	return b.String()
}
