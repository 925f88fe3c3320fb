package brackets

// SplitIntoGroups deals items round-robin into the smallest number of groups
// that respects maxSize. Every resulting group must hold at least minSize items.
func SplitIntoGroups[T any](items []T, minSize, maxSize int) ([][]T, error) {
	if len(items) == 0 || maxSize < 1 {
		return nil, &InsufficientParticipantsError{}
	}
	k := (len(items)-1)/maxSize + 1

	groups := make([][]T, k)
	for i, item := range items {
		groups[i%k] = append(groups[i%k], item)
	}

	result := groups[:0]
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		if len(g) < minSize {
			return nil, &InsufficientParticipantsError{}
		}
		result = append(result, g)
	}
	return result, nil
}
