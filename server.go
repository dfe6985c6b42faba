package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"imagehost-mcp/common"
	"imagehost-mcp/internal/genai/imagehost"
	"imagehost-mcp/internal/oss"
	"imagehost-mcp/internal/poller"
	"imagehost-mcp/internal/service"
	"imagehost-mcp/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const (
	serverName    = "ImageHost MCP Server"
	serverVersion = "1.0.0"
)

var overrides common.Overrides

var rootCmd = &cobra.Command{
	Use:           "imagehost-mcp",
	Short:         "MCP server for generating and editing images through URL conventions",
	Long:          "imagehost-mcp exposes image generation, editing and account tools of the image host to MCP clients over stdio, SSE or streamable HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&overrides.APIBaseURL, "api-url", "", "Image host API base URL (env IMAGEHOST_API_URL)")
	rootCmd.Flags().StringVar(&overrides.ImageBaseURL, "image-url", "", "Image host public URL (env IMAGEHOST_IMAGE_URL)")
	rootCmd.Flags().StringVar(&overrides.APIKey, "api-key", "", "API key (env IMAGEHOST_API_KEY)")
	rootCmd.Flags().StringVar(&overrides.Transport, "transport", "", "MCP transport: stdio, sse or http (env MCP_TRANSPORT)")
	rootCmd.Flags().StringVar(&overrides.Address, "addr", "", "Listen address for sse/http, host:port or port")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 加载配置
	config, err := common.LoadConfig(&overrides)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 打印配置信息（隐藏敏感信息）
	common.WithFields(map[string]interface{}{
		"api_url":   config.APIBaseURL,
		"image_url": config.ImageBaseURL,
		"api_key":   maskAPIKey(config.APIKey),
		"transport": config.Transport,
	}).Info("Server starting")

	// 创建 ImageHost 客户端
	client, err := imagehost.NewImageHostClientFromConfig(config)
	if err != nil {
		return fmt.Errorf("failed to create imagehost client: %w", err)
	}

	jobPoller := poller.New(client,
		poller.WithMaxAttempts(config.PollMaxAttempts),
		poller.WithInterval(time.Duration(config.PollIntervalSeconds)*time.Second),
		poller.WithAttemptTimeout(time.Duration(config.PollAttemptTimeoutSeconds)*time.Second),
	)

	opts := service.Options{
		ImageBaseURL:   config.ImageBaseURL,
		DefaultProject: config.DefaultProject,
	}
	// 可选：镜像到 OSS
	if config.OSSMirrorEnabled {
		mirror, err := oss.NewOSSClientFromConfig(config)
		if err != nil {
			return fmt.Errorf("failed to create OSS client: %w", err)
		}
		opts.Mirror = mirror
		opts.MirrorBucket = config.OSSBucket
		opts.MirrorExpires = int64(config.OSSURLExpiresSeconds)
		common.WithField("bucket", config.OSSBucket).Info("OSS mirror enabled")
	}
	svc := service.New(client, jobPoller, opts)

	// 创建 MCP 服务器
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
	)

	if err := tools.RegisterImageHostTools(s, svc); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	tools.RegisterGuideResource(s, tools.GuideOptions{
		ImageBase:    svc.ImageBaseURL(),
		PollAttempts: jobPoller.MaxAttempts(),
		PollInterval: jobPoller.Interval(),
	})

	return serve(ctx, s, config)
}

func serve(ctx context.Context, s *server.MCPServer, config *common.Config) error {
	switch strings.ToLower(config.Transport) {
	case "sse":
		addr := config.GetServerAddr()
		sse := server.NewSSEServer(s)
		common.WithField("addr", addr).Info("Serving MCP over SSE")
		return listen(ctx, func() error { return sse.Start(addr) }, sse.Shutdown)
	case "http":
		addr := config.GetServerAddr()
		httpServer := server.NewStreamableHTTPServer(s)
		common.WithField("addr", addr).Info("Serving MCP over streamable HTTP")
		return listen(ctx, func() error { return httpServer.Start(addr) }, httpServer.Shutdown)
	default:
		// 启动 stdio 服务器
		return server.ServeStdio(s)
	}
}

// listen 运行 HTTP 类传输，收到退出信号后优雅关闭
func listen(ctx context.Context, start func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		common.Info("Shutting down MCP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return shutdown(shutdownCtx)
	}
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
