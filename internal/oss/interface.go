package oss

import (
	"context"
	"io"
)

// OSSIface 镜像存储接口
type OSSIface interface {
	// UploadFile 上传文件到 OSS，返回 bucket/key
	UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)

	// GetSignedURL 获取文件的带签名 URL，expiresIn 为过期时间（秒）
	GetSignedURL(ctx context.Context, bucket, key string, expiresIn int64) (string, error)

	// UploadFileWithURL 上传文件并返回访问 URL：expiresIn > 0 时返回预签名 URL，否则返回公开 URL
	UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string, expiresIn int64) (string, error)
}
