package shpage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xv6-labs/umalloc-go/internal/shpage"
	"github.com/xv6-labs/umalloc-go/internal/xerrors"
)

func TestTable_MakeIsIdempotent(t *testing.T) {
	tbl := shpage.NewTable()

	p1 := tbl.Make(1, 100)
	p2 := tbl.Make(1, 200)
	assert.Same(t, p1, p2, "Make on an existing key must return the same page")

	creator, err := tbl.Creator(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), creator, "the first caller to Make stays the creator")
}

func TestTable_BindAddsHolder(t *testing.T) {
	tbl := shpage.NewTable()
	tbl.Make(1, 100)

	n, err := tbl.HolderCount(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = tbl.Bind(1, 200)
	require.NoError(t, err)

	n, err = tbl.HolderCount(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTable_BindUnknownKey(t *testing.T) {
	tbl := shpage.NewTable()
	_, err := tbl.Bind(99, 1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownShKey)
}

func TestTable_ChangeCreatorBindsIfNeeded(t *testing.T) {
	tbl := shpage.NewTable()
	tbl.Make(1, 100)

	require.NoError(t, tbl.ChangeCreator(1, 200))

	creator, err := tbl.Creator(1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), creator)

	n, err := tbl.HolderCount(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "changing creator to a new holder implicitly binds it")
}

func TestTable_QueriesOnUnknownKeyFail(t *testing.T) {
	tbl := shpage.NewTable()

	_, err := tbl.Creator(1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownShKey)

	_, err = tbl.HolderCount(1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownShKey)

	err = tbl.ChangeCreator(1, 2)
	assert.ErrorIs(t, err, xerrors.ErrUnknownShKey)
}

func TestPage_DataIsPageSized(t *testing.T) {
	tbl := shpage.NewTable()
	p := tbl.Make(1, 1)
	assert.Len(t, p.Data, shpage.PageSize)
}
