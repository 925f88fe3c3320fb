package brackets

// Reorder arranges ranked participants (best first) in the order a knockout tree
// expects when its leaves are filled: the best faces the worst, the second best
// the second worst, and so on.
//
// With accountForPlayoffs and a field that is not a power of two, the lowest
// ranked participants are moved in front so that they fill the preliminary
// fixtures while the top seeds receive byes.
func Reorder[T any](participants []T, accountForPlayoffs bool) []T {
	n := len(participants)
	if n == 0 {
		return []T{}
	}

	if accountForPlayoffs {
		f := largestPowerOfTwo(n)
		if f != n {
			extra := min(2*(n-f), n)
			result := Reorder(participants[n-extra:], false)
			return append(result, Reorder(participants[:n-extra], false)...)
		}
	}

	result := make([]T, 0, n)
	for i := 0; i < n/2; i++ {
		result = append(result, participants[i], participants[n-1-i])
	}
	if n%2 == 1 {
		result = append(result, participants[n/2])
	}
	return result
}

func largestPowerOfTwo(n int) int {
	f := 1
	for f*2 <= n {
		f *= 2
	}
	return f
}
