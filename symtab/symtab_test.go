package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefineStrongOverridesWeak(t *testing.T) {
	tab := NewTable()

	weakID, res, err := tab.Define(Symbol{
		Name:       "bar",
		Visibility: Global(true, false),
		Value:      Absolute(0x10),
	})
	require.NoError(t, err)
	require.Equal(t, MergeInserted, res)

	strongID, res, err := tab.Define(Symbol{
		Name:       "bar",
		Visibility: Global(false, false),
		Value:      Absolute(0x20),
	})
	require.NoError(t, err)
	require.Equal(t, MergeStrongWinsOverWeak, res)

	// The weak symbol's original ID now redirects to the strong winner.
	require.Equal(t, tab.Get(weakID).Value.Addr, uint64(0x20))
	require.Equal(t, tab.Resolve(weakID), tab.Resolve(strongID))

	id, ok := tab.Lookup("bar")
	require.True(t, ok)
	require.Equal(t, uint64(0x20), tab.Get(id).Value.Addr)
}

func TestDefineDuplicateStrongIsError(t *testing.T) {
	tab := NewTable()
	_, _, err := tab.Define(Symbol{Name: "foo", Visibility: Global(false, false), Value: Absolute(1)})
	require.NoError(t, err)

	_, res, err := tab.Define(Symbol{Name: "foo", Visibility: Global(false, false), Value: Absolute(2)})
	require.Error(t, err)
	require.Equal(t, MergeDuplicateStrong, res)
}

func TestDefineUndefinedThenStrong(t *testing.T) {
	tab := NewTable()
	undefID, _, err := tab.Define(Symbol{Name: "x", Visibility: Global(false, false), Value: Undefined()})
	require.NoError(t, err)

	strongID, res, err := tab.Define(Symbol{Name: "x", Visibility: Global(false, false), Value: Absolute(7)})
	require.NoError(t, err)
	require.Equal(t, MergeStrongWinsOverUndefined, res)
	require.Equal(t, tab.Resolve(undefID), tab.Resolve(strongID))
	require.Equal(t, uint64(7), tab.Get(undefID).Value.Addr)
}

func TestDefineBothUndefined(t *testing.T) {
	tab := NewTable()
	_, _, err := tab.Define(Symbol{Name: "y", Visibility: Global(false, false), Value: Undefined()})
	require.NoError(t, err)
	_, res, err := tab.Define(Symbol{Name: "y", Visibility: Global(false, false), Value: Undefined()})
	require.NoError(t, err)
	require.Equal(t, MergeBothUndefined, res)
}

func TestRedirectChainPathCompression(t *testing.T) {
	tab := NewTable()
	a, _, _ := tab.Define(Symbol{Name: "chain", Visibility: Global(true, false), Value: Undefined()})
	b, _, _ := tab.Define(Symbol{Name: "chain", Visibility: Global(true, false), Value: Absolute(1)})
	c, _, _ := tab.Define(Symbol{Name: "chain", Visibility: Global(false, false), Value: Absolute(2)})

	require.Equal(t, tab.Resolve(a), c)
	require.Equal(t, tab.Resolve(b), c)
}

func TestAllSkipsRedirects(t *testing.T) {
	tab := NewTable()
	tab.Define(Symbol{Name: "a", Visibility: Global(true, false), Value: Undefined()})
	tab.Define(Symbol{Name: "a", Visibility: Global(false, false), Value: Absolute(9)})

	var names []string
	tab.All(func(s *Symbol) bool {
		names = append(names, s.Name)
		return true
	})
	// Null symbol + the one surviving "a" definition.
	require.Len(t, names, 2)
}
