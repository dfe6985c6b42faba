package imageurl

import (
	"sort"
	"strings"
)

// Preset 常见用途的推荐尺寸
type Preset struct {
	UseCase     string `json:"use_case"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspect_ratio"`
	Notes       string `json:"notes"`
}

var presets = map[string]Preset{
	"hero":            {UseCase: "hero", Width: 1920, Height: 1080, AspectRatio: "16:9", Notes: "Full-width landing page hero"},
	"blog-header":     {UseCase: "blog-header", Width: 1200, Height: 630, AspectRatio: "1.91:1", Notes: "Article header, also fits link previews"},
	"og-image":        {UseCase: "og-image", Width: 1200, Height: 630, AspectRatio: "1.91:1", Notes: "Open Graph / social link preview"},
	"twitter-card":    {UseCase: "twitter-card", Width: 1200, Height: 675, AspectRatio: "16:9", Notes: "Large summary card"},
	"instagram-post":  {UseCase: "instagram-post", Width: 1080, Height: 1080, AspectRatio: "1:1", Notes: "Square feed post"},
	"instagram-story": {UseCase: "instagram-story", Width: 1080, Height: 1920, AspectRatio: "9:16", Notes: "Vertical story / reel cover"},
	"banner":          {UseCase: "banner", Width: 1500, Height: 500, AspectRatio: "3:1", Notes: "Profile or page banner"},
	"product":         {UseCase: "product", Width: 1000, Height: 1000, AspectRatio: "1:1", Notes: "E-commerce product shot"},
	"thumbnail":       {UseCase: "thumbnail", Width: 400, Height: 300, AspectRatio: "4:3", Notes: "Card or list thumbnail"},
	"avatar":          {UseCase: "avatar", Width: 256, Height: 256, AspectRatio: "1:1", Notes: "Profile picture"},
	"icon":            {UseCase: "icon", Width: 512, Height: 512, AspectRatio: "1:1", Notes: "App or feature icon"},
	"presentation":    {UseCase: "presentation", Width: 1920, Height: 1080, AspectRatio: "16:9", Notes: "Slide background"},
	"poster":          {UseCase: "poster", Width: 1024, Height: 1536, AspectRatio: "2:3", Notes: "Portrait poster"},
	"square":          {UseCase: "square", Width: 1024, Height: 1024, AspectRatio: "1:1", Notes: "General purpose default"},

	"youtube-thumbnail": {UseCase: "youtube-thumbnail", Width: 1280, Height: 720, AspectRatio: "16:9", Notes: "Video thumbnail"},
}

var presetAliases = map[string]string{
	"landing":      "hero",
	"header":       "blog-header",
	"blog":         "blog-header",
	"social":       "og-image",
	"open-graph":   "og-image",
	"twitter":      "twitter-card",
	"instagram":    "instagram-post",
	"story":        "instagram-story",
	"reel":         "instagram-story",
	"profile":      "avatar",
	"logo":         "icon",
	"youtube":      "youtube-thumbnail",
	"slide":        "presentation",
	"ecommerce":    "product",
	"e-commerce":   "product",
	"default":      "square",
	"general":      "square",
	"thumb":        "thumbnail",
	"cover":        "banner",
	"wallpaper":    "hero",
	"portrait":     "poster",
	"feed":         "instagram-post",
	"preview":      "og-image",
	"product-shot": "product",
}

// LookupPreset 按用途查找推荐尺寸，用途文本按 slug 规则归一后匹配，支持常见别名
func LookupPreset(useCase string) (Preset, bool) {
	key := Canonicalize(useCase)
	if p, ok := presets[key]; ok {
		return p, true
	}
	if alias, ok := presetAliases[key]; ok {
		return presets[alias], true
	}
	// 复合描述（如 "blog header image"）按前缀再匹配一次
	for _, p := range Presets() {
		if strings.HasPrefix(key, p.UseCase+"-") {
			return p, true
		}
	}
	return Preset{}, false
}

// Presets 返回按用途排序的全部预设
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UseCase < out[j].UseCase })
	return out
}
