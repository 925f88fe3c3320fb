package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReorder(t *testing.T) {
	assert.Equal(t, []int{2, 3, 1}, Reorder([]int{1, 2, 3}, true))
	assert.Equal(t, []int{2, 7, 3, 6, 4, 5, 1}, Reorder([]int{1, 2, 3, 4, 5, 6, 7}, true))
	assert.Equal(t, []int{}, Reorder([]int{}, true))
	assert.Equal(t, []int{1, 4, 2, 3}, Reorder([]int{1, 2, 3, 4}, true))
	assert.Equal(t, []int{1, 5, 2, 4, 3}, Reorder([]int{1, 2, 3, 4, 5}, false))
}

func TestReorderKeepsEveryone(t *testing.T) {
	for n := 1; n <= 20; n++ {
		participants := make([]int, n)
		for i := range participants {
			participants[i] = i
		}
		assert.ElementsMatch(t, participants, Reorder(participants, true), "n=%d", n)
	}
}
