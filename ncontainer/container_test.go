package ncontainer_test

import (
	"cmp"
	"testing"

	"github.com/joeycumines/nlib/ncontainer"
	"github.com/stretchr/testify/require"
)

func TestSetAddMaintainsSortedOrderAndDedupes(t *testing.T) {
	s := ncontainer.NewSet[int](cmp.Compare[int])

	require.True(t, s.Add(5))
	require.True(t, s.Add(1))
	require.True(t, s.Add(3))
	require.False(t, s.Add(3))

	require.Equal(t, []int{1, 3, 5}, s.Values())
	require.Equal(t, 3, s.Len())
	require.True(t, s.Contains(3))
	require.False(t, s.Contains(4))
}

func TestSetRemove(t *testing.T) {
	s := ncontainer.NewSet[int](cmp.Compare[int])
	s.Add(1)
	s.Add(2)

	require.True(t, s.Remove(1))
	require.False(t, s.Remove(1))
	require.Equal(t, []int{2}, s.Values())
}

func TestMapSetGetDelete(t *testing.T) {
	m := ncontainer.NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 2, m.Len())

	m.Delete("a")
	_, ok = m.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())
}

func TestMapRangeStopsEarly(t *testing.T) {
	m := ncontainer.NewMap[int, int]()
	for i := 0; i < 5; i++ {
		m.Set(i, i*i)
	}

	var seen int
	m.Range(func(key, value int) bool {
		seen++
		return seen < 2
	})
	require.Equal(t, 2, seen)
}
