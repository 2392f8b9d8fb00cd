package ringbuffer

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		r, err := New[int](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", capacity)
		assert.Nil(t, r)
	}
}

func TestMustNewPanicsOnBadCapacity(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for capacity <= 0")
		}
	}()
	_ = MustNew[int](0)
}

func TestNewIsEmpty(t *testing.T) {
	r := MustNew[int](4)
	assert.Equal(t, 4, r.Cap())
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.IsEmpty())
	assert.False(t, r.IsFull())
	assert.Equal(t, Empty, r.State())
	assert.Empty(t, r.ToSlice())
}

func TestPushAndLenUntilFull(t *testing.T) {
	const N = 10
	r := MustNew[int](N)
	for i := 0; i < N; i++ {
		if err := r.Push(i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
		if got, want := r.Len(), i+1; got != want {
			t.Fatalf("Len after %d pushes = %d, want %d", i+1, got, want)
		}
		// Oldest is always 0 until full
		if r.At(0) != 0 {
			t.Fatalf("oldest = %d, want 0", r.At(0))
		}
		if r.At(r.Len()-1) != i {
			t.Fatalf("newest = %d, want %d", r.At(r.Len()-1), i)
		}
	}
	if !r.IsFull() || r.State() != Full {
		t.Fatalf("expected full ring, state %s", r.State())
	}
}

func TestAddWithoutEvictionUntilFull(t *testing.T) {
	r := MustNew[int](3)

	for _, v := range []int{1, 2, 3} {
		_, evicted, err := r.Add(v)
		require.NoError(t, err)
		assert.False(t, evicted)
	}

	assert.Equal(t, 3, r.Len())
	assert.True(t, r.IsFull())
	head, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, head)
	assert.Equal(t, []int{1, 2, 3}, r.ToSlice())

	old, evicted, err := r.Add(4)
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, r.ToSlice())
}

func TestAddOverwritesOldestWhenFull(t *testing.T) {
	r := MustNew[string](2)
	require.NoError(t, r.Push("a"))
	require.NoError(t, r.Push("b"))

	old, evicted, err := r.Add("c")
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, "a", old)
	assert.Equal(t, []string{"b", "c"}, r.ToSlice())

	old, evicted, err = r.Add("d")
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, "b", old)
	assert.Equal(t, []string{"c", "d"}, r.ToSlice())
	assert.Equal(t, 2, r.Len())
}

func TestEvictionShiftsWindow(t *testing.T) {
	for capacity := 1; capacity <= 7; capacity++ {
		t.Run(fmt.Sprint(capacity), func(t *testing.T) {
			r := MustNew[int](capacity)
			for i := 0; i < capacity; i++ {
				require.NoError(t, r.Push(i))
			}
			for x := capacity; x < 3*capacity+1; x++ {
				before := r.ToSlice()
				old, evicted, err := r.Add(x)
				require.NoError(t, err)
				require.True(t, evicted)
				assert.Equal(t, before[0], old)
				assert.Equal(t, append(before[1:], x), r.ToSlice())
				assert.True(t, r.IsFull())
			}
		})
	}
}

func TestPeekAndPollFollowQueueOrder(t *testing.T) {
	r := MustNew[int](2)
	require.NoError(t, r.Push(10))
	require.NoError(t, r.Push(20))

	v, ok := r.Peek()
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = r.Poll()
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = r.Poll()
	assert.True(t, ok)
	assert.Equal(t, 20, v)

	_, ok = r.Poll()
	assert.False(t, ok)
	assert.True(t, r.IsEmpty())
}

func TestPollOnEmptyLeavesState(t *testing.T) {
	r := MustNew[int](3)
	_, ok := r.Poll()
	assert.False(t, ok)
	_, ok = r.Peek()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestPollZeroesSlot(t *testing.T) {
	x := new(int)
	r := MustNew[*int](2)
	require.NoError(t, r.Push(x))

	got, ok := r.Poll()
	require.True(t, ok)
	assert.Same(t, x, got)
	assert.Nil(t, r.buf[0])
	assert.Equal(t, 1, r.head)
}

func TestPeekThenAddRoundTrip(t *testing.T) {
	r := MustNew[string](5)
	require.NoError(t, r.Push("only"))
	v, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, "only", v)
	assert.Equal(t, 1, r.Len())
}

func TestWrapAroundAfterPolls(t *testing.T) {
	r := MustNew[int](3)
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, r.Push(v))
	}
	r.Poll()
	r.Poll()
	require.NoError(t, r.Push(4))
	require.NoError(t, r.Push(5))

	assert.Equal(t, []int{3, 4, 5}, r.ToSlice())
	assert.True(t, r.IsFull())
	for i, want := range []int{3, 4, 5} {
		assert.Equal(t, want, r.At(i))
	}
}

func TestClearResetsState(t *testing.T) {
	r := MustNew[int](2)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))

	r.Clear()
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.head)
	assert.Equal(t, []int{0, 0}, r.buf)

	r.Clear()
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 2, r.Cap())

	require.NoError(t, r.Push(3))
	assert.Equal(t, []int{3}, r.ToSlice())
}

func TestClearOnEmptyIsNoop(t *testing.T) {
	r := MustNew[int](2)
	mods := r.mods
	r.Clear()
	assert.Equal(t, mods, r.mods)
}

func TestAddRejectsNil(t *testing.T) {
	r := MustNew[*string](1)
	_, _, err := r.Add(nil)
	require.ErrorIs(t, err, ErrNilElement)
	assert.Equal(t, 0, r.Len())

	s := "x"
	require.NoError(t, r.Push(&s))

	_, _, err = r.Add(nil)
	require.ErrorIs(t, err, ErrNilElement)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []*string{&s}, r.ToSlice())
}

func TestAddRejectsNilKinds(t *testing.T) {
	require.ErrorIs(t, MustNew[any](1).Push(nil), ErrNilElement)
	require.ErrorIs(t, MustNew[error](1).Push(nil), ErrNilElement)
	require.ErrorIs(t, MustNew[map[string]int](1).Push(nil), ErrNilElement)
	require.ErrorIs(t, MustNew[[]byte](1).Push(nil), ErrNilElement)
	require.ErrorIs(t, MustNew[chan int](1).Push(nil), ErrNilElement)
	require.ErrorIs(t, MustNew[func()](1).Push(nil), ErrNilElement)

	// A typed nil inside an interface is still missing.
	require.ErrorIs(t, MustNew[any](1).Push((*int)(nil)), ErrNilElement)
	require.ErrorIs(t, MustNew[any](1).Push(map[string]int(nil)), ErrNilElement)
	var fs fmt.Stringer = (*strings.Builder)(nil)
	require.ErrorIs(t, MustNew[fmt.Stringer](1).Push(fs), ErrNilElement)
	require.NoError(t, MustNew[any](1).Push(0))
	require.NoError(t, MustNew[any](1).Push(new(int)))

	// Zero values of non-nil-able types are ordinary elements.
	require.NoError(t, MustNew[int](1).Push(0))
	require.NoError(t, MustNew[string](1).Push(""))
	require.NoError(t, MustNew[[]byte](1).Push([]byte{}))
}

func TestAtPanicsOnOutOfRange(t *testing.T) {
	r := MustNew[int](1)
	require.NoError(t, r.Push(1))
	defer func() {
		if p := recover(); p == nil {
			t.Fatalf("expected panic on At out of range")
		}
	}()
	_ = r.At(1) // Len==1, index 1 should panic
}

func TestToSliceIsIndependent(t *testing.T) {
	r := MustNew[int](3)
	for _, v := range []int{1, 2, 3, 4} {
		require.NoError(t, r.Push(v))
	}

	snap := r.ToSlice()
	snap[0] = 99
	assert.Equal(t, []int{2, 3, 4}, r.ToSlice())

	require.NoError(t, r.Push(5))
	assert.Equal(t, []int{99, 3, 4}, snap)
}

func TestStateTransitions(t *testing.T) {
	r := MustNew[int](2)
	assert.Equal(t, Empty, r.State())
	require.NoError(t, r.Push(1))
	assert.Equal(t, Partial, r.State())
	require.NoError(t, r.Push(2))
	assert.Equal(t, Full, r.State())
	require.NoError(t, r.Push(3))
	assert.Equal(t, Full, r.State())
	r.Poll()
	assert.Equal(t, Partial, r.State())
	r.Clear()
	assert.Equal(t, Empty, r.State())
	assert.Equal(t, "unknown", State(9).String())
}

func TestEvictCallback(t *testing.T) {
	var evicted []int
	r := MustNew[int](2, WithEvictCallback(func(x int) {
		evicted = append(evicted, x)
	}))
	for _, v := range []int{1, 2, 3, 4} {
		require.NoError(t, r.Push(v))
	}
	r.Poll()
	r.Clear()
	assert.Equal(t, []int{1, 2}, evicted)
}

func TestGenericTypeSupport(t *testing.T) {
	type item struct {
		ID int
		S  string
	}
	r := MustNew[item](2)
	require.NoError(t, r.Push(item{1, "x"}))
	require.NoError(t, r.Push(item{2, "y"}))
	require.NoError(t, r.Push(item{3, "z"})) // evicts {1,"x"}
	got := r.ToSlice()
	want := []item{{2, "y"}, {3, "z"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("generic items got %v, want %v", got, want)
	}
}

func TestJSON(t *testing.T) {
	for _, tc := range []struct {
		name   string
		pushes []int
		want   string
	}{
		{"empty", nil, "[]"},
		{"partial", []int{1, 2}, "[1,2]"},
		{"full", []int{1, 2, 3}, "[1,2,3]"},
		{"overflowed", []int{1, 2, 3, 4}, "[2,3,4]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := MustNew[int](3)
			for _, v := range tc.pushes {
				require.NoError(t, r.Push(v))
			}
			b, err := json.Marshal(r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(b))
		})
	}
}

func BenchmarkAdd(b *testing.B) {
	const N = 1_000_000
	r := MustNew[int](N)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Add(i)
	}
}

func BenchmarkAddPointer(b *testing.B) {
	r := MustNew[*int](1024)
	x := new(int)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Add(x)
	}
}
