package sfxindex

// 后缀排序：前缀倍增 + 计数排序。
//
// 文本为 w0 ⊥0 w1 ⊥1 ... w(n-1) ⊥(n-1)，每个哨兵 ⊥k 取值 k，字节 c 取值 n+c，
// 因而哨兵两两不同且小于任意字节。所有后缀在遇到自身所属词的哨兵时必然分出先后，
// 所以倍增轮数只取决于最长词长 M，总代价 O(L log M)。

// symbols 将词表展开为整数字母表文本，并返回每个词的起点与总长度。
func symbols(words []string) (text []int32, starts []int32) {
	total := 0
	for _, w := range words {
		total += len(w) + 1
	}
	text = make([]int32, 0, total)
	starts = make([]int32, len(words))
	n := int32(len(words))
	for k, w := range words {
		starts[k] = int32(len(text))
		for i := 0; i < len(w); i++ {
			text = append(text, n+int32(w[i]))
		}
		text = append(text, int32(k))
	}
	return text, starts
}

// suffixOrder 返回 text 全部后缀的字典序排列。alpha 为字母表大小（取值上界+1）。
func suffixOrder(text []int32, alpha int) []int32 {
	n := len(text)
	if n == 0 {
		return nil
	}
	sa := make([]int32, n)
	rank := make([]int32, n)
	tmp := make([]int32, n)
	size := alpha
	if n > size {
		size = n
	}
	cnt := make([]int32, size+1)

	// 初始：按单个符号计数排序
	for _, c := range text {
		cnt[c]++
	}
	prefixSum(cnt[:alpha])
	for i := n - 1; i >= 0; i-- {
		c := text[i]
		cnt[c]--
		sa[cnt[c]] = int32(i)
	}
	copy(rank, text)
	classes := alpha

	for k := 1; k < n; k <<= 1 {
		// 第二关键字序：越界者（第二关键字为空）在前，其余沿用上一轮 sa
		p := 0
		for i := n - k; i < n; i++ {
			tmp[p] = int32(i)
			p++
		}
		for _, s := range sa {
			if int(s) >= k {
				tmp[p] = s - int32(k)
				p++
			}
		}
		// 第一关键字稳定计数排序
		clear(cnt[:classes])
		for _, r := range rank {
			cnt[r]++
		}
		prefixSum(cnt[:classes])
		for i := n - 1; i >= 0; i-- {
			s := tmp[i]
			cnt[rank[s]]--
			sa[cnt[rank[s]]] = s
		}
		// 重新编号
		tmp[sa[0]] = 0
		classes = 1
		for i := 1; i < n; i++ {
			a, b := sa[i-1], sa[i]
			if rank[a] != rank[b] || second(rank, a, k) != second(rank, b, k) {
				classes++
			}
			tmp[b] = int32(classes - 1)
		}
		rank, tmp = tmp, rank
		if classes == n {
			break
		}
	}
	return sa
}

func second(rank []int32, i int32, k int) int32 {
	if j := int(i) + k; j < len(rank) {
		return rank[j]
	}
	return -1
}

// prefixSum 将计数转换为各桶的结束位置（排他上界）。
func prefixSum(cnt []int32) {
	var sum int32
	for i, c := range cnt {
		sum += c
		cnt[i] = sum
	}
}
