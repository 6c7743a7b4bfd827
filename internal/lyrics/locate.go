package lyrics

import "sort"

// LocateIndex 返回最后一个 TimeMs <= positionMs 的行号
// 位置在第一行之前或没有歌词时返回 -1，lines 必须按时间升序
func LocateIndex(lines []Line, positionMs int64) int {
	// 第一个时间戳严格大于当前位置的行
	next := sort.Search(len(lines), func(i int) bool {
		return lines[i].TimeMs > positionMs
	})
	return next - 1
}

// Locate 返回 positionMs 处的当前行
// 不保存任何状态，回拖进度或任意频率调用都没有问题
func Locate(lines []Line, positionMs int64) (Line, int, bool) {
	idx := LocateIndex(lines, positionMs)
	if idx < 0 {
		return Line{}, -1, false
	}
	return lines[idx], idx, true
}
