package contract

import "strconv"

// PairLabel 返回异或对 {i,j} 的诊断标签（1 基、升序），例如 x12 = p1 ^ p2。
// 任一下标超过 9 时以逗号分隔，避免 x112 这类歧义。
func PairLabel(i, j int) string {
	if i > j {
		i, j = j, i
	}
	a, b := strconv.Itoa(i+1), strconv.Itoa(j+1)
	if i+1 > 9 || j+1 > 9 {
		return "x" + a + "," + b
	}
	return "x" + a + b
}
