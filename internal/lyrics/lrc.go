package lyrics

import (
	"bufio"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var timestampRe = regexp.MustCompile(`\[(\d+):(\d{1,2})(?:\.(\d{1,3}))?\]`)

// ParseLRC 解析 [mm:ss.xx]text 格式的歌词，无法解析的行直接丢弃
func ParseLRC(lrc string) []Line {
	scanner := bufio.NewScanner(strings.NewReader(lrc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var result []Line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// 时间戳必须在行首，[ar:xxx] 这类元数据不会匹配
		matches := timestampRe.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 || matches[0][0] != 0 {
			continue
		}

		// 一行可以有多个连续时间戳: [00:12.00][01:30.00]text
		end := 0
		var stamps []int64
		for _, m := range matches {
			if m[0] != end {
				break
			}
			ms, ok := parseStamp(line, m)
			if ok {
				stamps = append(stamps, ms)
			}
			end = m[1]
		}

		text := strings.TrimSpace(line[end:])
		if text == "" {
			continue
		}
		for _, ms := range stamps {
			result = append(result, Line{TimeMs: ms, Text: text})
		}
	}

	SortLines(result)
	return result
}

// SortLines 按时间升序排序，时间相同保持原顺序
func SortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].TimeMs < lines[j].TimeMs })
}

func parseStamp(line string, m []int) (int64, bool) {
	minutes, err := strconv.ParseInt(line[m[2]:m[3]], 10, 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseInt(line[m[4]:m[5]], 10, 64)
	if err != nil || seconds >= 60 {
		return 0, false
	}

	var fraction int64
	if m[6] >= 0 {
		digits := line[m[6]:m[7]]
		fraction, err = strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, false
		}
		// 根据位数换算成毫秒: .5 -> 500, .49 -> 490, .490 -> 490
		switch len(digits) {
		case 1:
			fraction *= 100
		case 2:
			fraction *= 10
		}
	}

	return (minutes*60+seconds)*1000 + fraction, true
}

// FormatStamp 把毫秒格式化为 mm:ss.xx
func FormatStamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	centis := (ms % 1000) / 10
	return strconv.FormatInt(minutes, 10) + ":" + pad2(seconds) + "." + pad2(centis)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
