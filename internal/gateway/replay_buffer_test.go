package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqs(entries []ReplayEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Seq
	}
	return out
}

func TestReplayBuffer_Range(t *testing.T) {
	rb := NewReplayBuffer(100)
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, []byte("msg"))
	}

	assert.Equal(t, []int64{3, 4, 5, 6, 7}, seqs(rb.Range(3, 7)))
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, []byte("msg"))
	}

	require.Equal(t, 5, rb.Len())
	assert.Equal(t, []int64{4, 5, 6, 7, 8}, seqs(rb.Range(1, 10)))
}

func TestReplayBuffer_ExactlyFull(t *testing.T) {
	rb := NewReplayBuffer(3)
	for i := int64(1); i <= 3; i++ {
		rb.Push(i, nil)
	}
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int64{1, 2, 3}, seqs(rb.Range(0, 99)))
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	assert.Empty(t, rb.Range(1, 100))
	assert.Equal(t, 0, rb.Len())
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, data)
	data[0] = 'z'

	assert.Equal(t, "abc", string(rb.Range(1, 1)[0].Data))
}
