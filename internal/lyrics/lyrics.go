package lyrics

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// keySeparator 是控制字符，NewIdentity 会把它从字段中剔除，所以不会与内容冲突
const keySeparator = "\x1f"

// Line 歌词行，TimeMs 为毫秒时间戳
type Line struct {
	TimeMs      int64  `json:"time_ms"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// SyncedLyricSet 一首歌的同步歌词
type SyncedLyricSet struct {
	Lines     []Line `json:"lines"`
	PlainText string `json:"plain_text,omitempty"`
	Provider  string `json:"provider"`
}

// Empty 没有任何同步行时视为不可用
func (s SyncedLyricSet) Empty() bool {
	return len(s.Lines) == 0
}

// Transcript 返回用于完整歌词视图的文本
func (s SyncedLyricSet) Transcript() string {
	if s.PlainText != "" {
		return s.PlainText
	}
	return JoinText(s.Lines)
}

// Identity 歌曲身份（标准化后的歌手和标题）
type Identity struct {
	Artist string
	Title  string
}

// NewIdentity 标准化歌手和标题
func NewIdentity(artist, title string) Identity {
	return Identity{
		Artist: normalizeField(artist),
		Title:  normalizeField(title),
	}
}

// Key 缓存键以及切歌判断用的标识
func (id Identity) Key() string {
	if id.IsZero() {
		return ""
	}
	return id.Artist + keySeparator + id.Title
}

func (id Identity) IsZero() bool {
	return id.Artist == "" && id.Title == ""
}

func (id Identity) String() string {
	switch {
	case id.Artist == "":
		return id.Title
	case id.Title == "":
		return id.Artist
	default:
		return id.Artist + " - " + id.Title
	}
}

// Snapshot 一次轮询得到的播放状态
type Snapshot struct {
	Identity   Identity
	PositionMs int64
	DurationMs int64
	Playing    bool
	Player     string
}

func normalizeField(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r) {
			if unicode.IsSpace(r) {
				return ' '
			}
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// JoinText 按顺序拼接歌词文本
func JoinText(lines []Line) string {
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	return strings.Join(texts, "\n")
}
