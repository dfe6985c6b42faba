// Package imageurl 负责把项目、描述、尺寸、格式等参数确定性地转换为图片资源路径、
// 访问 URL 与 HTML 片段。包内全部为纯函数，不做任何 I/O（读取本地图片尺寸除外）。
//
// 同一个资源路径同时用于两个服务：
//   - 拼接在图片域名后，得到可直接访问的图片地址
//   - 拼接在 API 的 /content/request-json/ 后，得到生成任务的状态查询地址
package imageurl

import "strings"

// MaxDescriptionSlugLen 描述文本生成的 slug 最大长度
const MaxDescriptionSlugLen = 100

// Canonicalize 将任意文本转换为 slug：
// 转小写，[a-z0-9-] 以外的字符替换为 "-"，合并连续的 "-"，去掉首尾的 "-"。
// 结果只包含小写字母、数字和单个连字符，重复调用结果不变。
func Canonicalize(raw string) string {
	lower := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lower))
	// 初始为 true，用于吞掉开头的分隔符
	pendingHyphen := true
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		if !pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// CanonicalizeDescription 对描述文本做 Canonicalize 并截断到 MaxDescriptionSlugLen。
// 截断后可能留下结尾的 "-"，需要再去掉一次。编辑指令不走这个函数，不截断。
func CanonicalizeDescription(raw string) string {
	slug := Canonicalize(raw)
	if len(slug) > MaxDescriptionSlugLen {
		slug = strings.TrimSuffix(slug[:MaxDescriptionSlugLen], "-")
	}
	return slug
}

// humanize 把 slug 还原为以空格分隔的文本，用于 alt 与描述展示
func humanize(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}
