package poller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"imagehost-mcp/internal/utils"
)

// StatusResponse 一次状态查询的原始 HTTP 结果
type StatusResponse struct {
	StatusCode int
	Body       []byte
}

// Kind 单次查询结果的分类
type Kind int

const (
	// Pending 任务仍在处理中（包括可忽略的瞬时错误）
	Pending Kind = iota
	// Ready 已拿到图片数据或图片地址
	Ready
	// Failed 任务明确失败，不再重试
	Failed
)

func (k Kind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome Interpret 的结果
type Outcome struct {
	Kind Kind
	// Ready：内联 base64 数据已解码
	Data     []byte
	MIMEType string
	// Ready：数据是一个远程地址，需要二次下载
	PayloadURL string
	// Pending / Failed 的原因，用于日志和错误信息
	Reason string
}

// statusBody 状态接口返回结构：
//
//	{"success": true, "status": "COMPLETED", "mediaAsset": {"data": "data:image/png;base64,...", "mimeType": "image/png"}}
//	{"success": false, "status": "FAILED", "message": "content policy violation"}
type statusBody struct {
	Success    *bool  `json:"success"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	MediaAsset *struct {
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
	} `json:"mediaAsset"`
}

func (b *statusBody) failed() bool {
	return strings.EqualFold(b.Status, "FAILED")
}

func (b *statusBody) reason() string {
	if b.Message != "" {
		return b.Message
	}
	if b.Error != "" {
		return b.Error
	}
	return b.Status
}

// Interpret 解释一次状态查询。这是纯函数，不做网络请求：
//   - 传输错误、202、没有数据的 2xx、无法解析的返回都视为仍在处理
//   - 2xx 且 success 并带有 mediaAsset.data 视为完成
//   - 返回体中 status 为 FAILED 的视为失败
//
// 401/403 是在上述规则之外有意增加的：凭证错误不会随时间恢复，
// 因此不论返回体内容都立即视为失败，而不是继续轮询到次数耗尽。
func Interpret(resp *StatusResponse, fetchErr error) Outcome {
	if fetchErr != nil {
		return Outcome{Kind: Pending, Reason: "transient fetch error: " + fetchErr.Error()}
	}
	if resp == nil {
		return Outcome{Kind: Pending, Reason: "empty response"}
	}

	var body statusBody
	parseErr := json.Unmarshal(resp.Body, &body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, utils.TruncateForLog(string(resp.Body), 300))}
	case resp.StatusCode >= 400:
		if parseErr == nil && body.failed() {
			return Outcome{Kind: Failed, Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, body.reason())}
		}
		return Outcome{Kind: Pending, Reason: fmt.Sprintf("transient status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusAccepted:
		return Outcome{Kind: Pending, Reason: "accepted, still processing"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Outcome{Kind: Pending, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if parseErr != nil {
		return Outcome{Kind: Pending, Reason: "malformed response: " + parseErr.Error()}
	}
	if body.failed() {
		return Outcome{Kind: Failed, Reason: body.reason()}
	}
	if body.Success != nil && !*body.Success {
		return Outcome{Kind: Pending, Reason: "not successful yet: " + body.reason()}
	}
	if body.MediaAsset == nil || strings.TrimSpace(body.MediaAsset.Data) == "" {
		return Outcome{Kind: Pending, Reason: "no media payload yet"}
	}

	data := strings.TrimSpace(body.MediaAsset.Data)
	if strings.HasPrefix(data, "http://") || strings.HasPrefix(data, "https://") {
		return Outcome{Kind: Ready, PayloadURL: data, MIMEType: body.MediaAsset.MIMEType}
	}

	decoded, mimeType, err := utils.DecodeDataURL(data)
	if err != nil {
		return Outcome{Kind: Pending, Reason: "undecodable media payload: " + err.Error()}
	}
	if body.MediaAsset.MIMEType != "" {
		mimeType = body.MediaAsset.MIMEType
	}
	return Outcome{Kind: Ready, Data: decoded, MIMEType: mimeType}
}
