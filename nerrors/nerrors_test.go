package nerrors_test

import (
	"errors"
	"testing"

	"github.com/joeycumines/nlib/nerrors"
	"github.com/stretchr/testify/require"
)

func TestNewAggregateCollapsesSingle(t *testing.T) {
	cause := errors.New("boom")
	err := nerrors.NewAggregate(nil, cause, nil)
	require.Equal(t, cause, err)
}

func TestNewAggregateNilWhenEmpty(t *testing.T) {
	require.Nil(t, nerrors.NewAggregate(nil, nil))
}

func TestAggregateUnwrapsAllCauses(t *testing.T) {
	c1 := errors.New("one")
	c2 := errors.New("two")
	err := nerrors.NewAggregate(c1, c2)

	require.True(t, errors.Is(err, c1))
	require.True(t, errors.Is(err, c2))

	var agg *nerrors.Aggregate
	require.True(t, errors.As(err, &agg))
	require.Len(t, agg.Causes, 2)
}

func TestFromRecoverPreservesError(t *testing.T) {
	cause := errors.New("inner")
	var f *nerrors.Faulted
	func() {
		defer func() {
			f = nerrors.FromRecover(recover())
		}()
		panic(cause)
	}()

	require.True(t, f.Panic)
	require.True(t, errors.Is(f, cause))
}

func TestWrapNilCause(t *testing.T) {
	require.Nil(t, nerrors.Wrap("context", nil))
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := errors.New("root")
	err := nerrors.Wrap("while doing thing", cause)
	require.True(t, errors.Is(err, cause))
}
