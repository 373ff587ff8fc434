package scratch_test

import (
	"context"
	"os"
	"testing"

	"github.com/aretw0/diagramflow/pkg/adapters/scratch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_MountUnmount(t *testing.T) {
	st := scratch.New(t.TempDir())

	s, err := st.Mount(context.Background(), "<svg/>")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", s.Markup())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	require.NoError(t, st.Unmount(s))
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "surface must be removed")
}

func TestStage_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scratch.New(t.TempDir()).Mount(ctx, "<svg/>")
	assert.ErrorIs(t, err, context.Canceled)
}

type foreign struct{}

func (foreign) Markup() string { return "" }
func (foreign) Path() string   { return "" }

func TestStage_RejectsForeignSurface(t *testing.T) {
	assert.Error(t, scratch.New("").Unmount(foreign{}))
}
