package lyrics

import (
	"regexp"
	"strings"
)

// 作词/作曲/编曲等署名行，中英文两种写法
var creditRe = regexp.MustCompile(
	`(?i)^\s*(?:` +
		`(?:lyrics|words|music|composed|arranged|produced|written)\s+by` +
		`|(?:author|composer|arranger|lyricist|producer|writer)s?\s*[:：]` +
		`|(?:作词|作曲|编曲|填词|谱曲|制作人|词|曲|作詞|編曲|製作人)\s*[:：]` +
		`)`)

// IsCredit 判断一行是否为署名信息
func IsCredit(text string) bool {
	return creditRe.MatchString(text)
}

// FilterCredits 从纯文本歌词中去掉署名行
func FilterCredits(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsCredit(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// NewSet 由解析出的歌词行和可选的原文本构造歌词集合
func NewSet(provider string, lines []Line, plain string) SyncedLyricSet {
	if plain == "" {
		plain = JoinText(lines)
	}
	return SyncedLyricSet{
		Lines:     lines,
		PlainText: FilterCredits(plain),
		Provider:  provider,
	}
}
