package affiliation

import (
	"regexp"
	"strings"

	"github.com/biter777/countries"
)

var (
	// 按分号或单词 and 拆成多个机构
	reMentionSplit = regexp.MustCompile(`[;]|\band\b`)
	// 去掉 at / @ 之前的内容，例如 "Professor at MIT"
	reAtPrefix = regexp.MustCompile(`(?i).*?\bat\b|.*?@`)
	// 个人身份而不是机构
	reIdentity = regexp.MustCompile(`(?i)\b(director|manager|chair|engineer|programmer|scientist|professor|lecturer|phd|ph\.d|postdoc|doctor|student|department of)\b`)
	// 能独立成为一个机构的片段
	reInstitution = regexp.MustCompile(`(?i)\b(universit(y|ies|at|ät|é|e|à|a)|institut(e|o|ion)?|college|school|lab|labs|laborator(y|ies)|hospital|cent(er|re)|academy|inc|corp|corporation|company|foundation|research|polytechnic|politecnico|ltd|llc|gmbh)\b`)
)

// commaReplacer 全角逗号也按逗号处理
var commaReplacer = strings.NewReplacer("，", ",")

// Normalize 将自填的机构文本拆成若干机构名，过滤掉职位等个人身份描述。
// 逗号后的片段只有在本身是机构名时才开始新的机构；国家名接在前一个机构后面
func Normalize(raw string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range reMentionSplit.Split(commaReplacer.Replace(raw), -1) {
		for _, mention := range commaMerge(part) {
			cleaned := strings.TrimSpace(reAtPrefix.ReplaceAllString(mention, ""))
			cleaned = strings.Trim(cleaned, " ,.")
			if cleaned == "" || reIdentity.MatchString(cleaned) {
				continue
			}
			if _, ok := seen[cleaned]; ok {
				continue
			}
			seen[cleaned] = struct{}{}
			out = append(out, cleaned)
		}
	}
	return out
}

func commaMerge(s string) []string {
	var mentions []string
	cur := ""
	closed := false // 上一个机构已经以国家名结尾
	for _, seg := range strings.Split(s, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		switch {
		case IsCountry(seg):
			switch {
			case cur != "":
				mentions = append(mentions, cur+", "+seg)
				cur = ""
			case closed && len(mentions) > 0:
				mentions[len(mentions)-1] += ", " + seg
			default:
				mentions = append(mentions, seg)
			}
			closed = true
			continue
		case cur == "":
			cur = seg
		case reInstitution.MatchString(seg):
			mentions = append(mentions, cur)
			cur = seg
		default:
			cur += ", " + seg
		}
		closed = false
	}
	if cur != "" {
		mentions = append(mentions, cur)
	}
	return mentions
}

// IsCountry 片段是否为国家名。两个字母以内的缩写（如州名 MA）不算
func IsCountry(s string) bool {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= 2 {
		return false
	}
	return countries.ByName(s) != countries.Unknown
}
