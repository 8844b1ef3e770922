package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/vidflut/internal/codec"
	"github.com/llehouerou/vidflut/internal/color"
	"github.com/llehouerou/vidflut/internal/frame"
	"github.com/llehouerou/vidflut/internal/source"
)

// ramp returns n 4x4 frames whose top-left pixel brightens by 40 each frame.
func ramp(n int) []*frame.Frame {
	frames := make([]*frame.Frame, n)
	for i := range n {
		data := make([]color.Color, 16)
		for j := range data {
			data[j] = color.New(10, 10, 10)
		}
		v := uint8((i * 40) % 256)
		data[0] = color.New(v, v, v)
		f, _ := frame.New(4, 4, data)
		frames[i] = f
	}
	return frames
}

func thresholdFactory(t *testing.T) codec.Factory {
	t.Helper()
	f, err := codec.NewFactory(codec.Options{
		Algorithm: codec.AlgorithmThreshold,
		Level:     codec.PresetLevel(codec.PresetMedium),
		FPS:       30,
	})
	require.NoError(t, err)
	return f
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		n, size int
		want    []Chunk
	}{
		{"even", 6, 3, []Chunk{{0, 3}, {3, 6}}},
		{"short tail", 7, 3, []Chunk{{0, 3}, {3, 6}, {6, 7}}},
		{"single chunk", 2, 10, []Chunk{{0, 2}}},
		{"empty", 0, 4, nil},
		{"zero size", 5, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(tt.n, tt.size))
		})
	}
}

func TestNew_Validation(t *testing.T) {
	factory := thresholdFactory(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero chunk size", Config{ChunkSize: 0, Workers: 1, NewCodec: factory}},
		{"zero workers", Config{ChunkSize: 1, Workers: 0, NewCodec: factory}},
		{"no codec", Config{ChunkSize: 1, Workers: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRun_ChunkStartsAreFull(t *testing.T) {
	frames := ramp(10)
	p, err := New(Config{ChunkSize: 3, Workers: 4, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	got, err := p.Run(context.Background(), source.NewMemory(30, frames...), len(frames))
	require.NoError(t, err)
	require.Len(t, got, len(frames))

	for i, u := range got {
		if i%3 == 0 {
			assert.True(t, u.IsFull(), "frame %d starts a chunk and must be Full, got %s", i, u.Kind())
		} else {
			assert.False(t, u.IsFull(), "frame %d is inside a chunk, got Full", i)
		}
	}
	assert.EqualValues(t, len(frames), p.Completed())
	assert.EqualValues(t, len(frames), p.Total())
}

func TestRun_SingleChunkMatchesSequential(t *testing.T) {
	frames := ramp(8)
	factory := thresholdFactory(t)

	p, err := New(Config{ChunkSize: 100, Workers: 3, NewCodec: factory})
	require.NoError(t, err)
	got, err := p.Run(context.Background(), source.NewMemory(30, frames...), len(frames))
	require.NoError(t, err)

	c := factory()
	for i, f := range frames {
		want := c.Compress(f)
		assert.Equal(t, want, got[i], "frame %d", i)
	}
}

func TestRun_ReconstructsEveryChunk(t *testing.T) {
	frames := ramp(9)
	p, err := New(Config{ChunkSize: 2, Workers: 2, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	got, err := p.Run(context.Background(), source.NewMemory(30, frames...), len(frames))
	require.NoError(t, err)

	var recon *frame.Frame
	for i, u := range got {
		if u.IsFull() {
			recon = frame.Filled(4, 4, color.Color{})
		}
		recon = recon.MustApply(u)
		// Each step is 40 levels, well above the medium luma threshold.
		assert.Equal(t, frames[i].At(0, 0), recon.At(0, 0), "frame %d", i)
	}
}

type failingLoader struct {
	inner  source.Source
	failAt int
	loads  atomic.Int64
}

var errBroken = errors.New("broken frame")

func (f *failingLoader) Load(index int) (*frame.Frame, error) {
	f.loads.Add(1)
	if index == f.failAt {
		return nil, errBroken
	}
	return f.inner.Load(index)
}

func TestRun_LoadFailureAborts(t *testing.T) {
	frames := ramp(12)
	loader := &failingLoader{inner: source.NewMemory(30, frames...), failAt: 5}

	p, err := New(Config{ChunkSize: 4, Workers: 1, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	got, err := p.Run(context.Background(), loader, len(frames))
	assert.Nil(t, got)
	require.Error(t, err)

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 5, fe.Index)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, "failed to load frame 6: broken frame", err.Error())

	// With one worker the third chunk is never started.
	assert.EqualValues(t, 6, loader.loads.Load())
}

// gatedLoader fails on failAt and holds every load outside the failing
// chunk until shortly after that failure.
type gatedLoader struct {
	inner     source.Source
	failAt    int
	failChunk Chunk
	gate      chan struct{}
	loads     atomic.Int64
}

func (g *gatedLoader) Load(index int) (*frame.Frame, error) {
	g.loads.Add(1)
	if index == g.failAt {
		time.AfterFunc(20*time.Millisecond, func() { close(g.gate) })
		return nil, errBroken
	}
	if index < g.failChunk.Start || index >= g.failChunk.End {
		<-g.gate
	}
	return g.inner.Load(index)
}

func TestRun_LoadFailureStopsOtherWorkers(t *testing.T) {
	const chunkSize = 25
	frames := ramp(4 * chunkSize)
	loader := &gatedLoader{
		inner:     source.NewMemory(30, frames...),
		failAt:    1,
		failChunk: Chunk{Start: 0, End: chunkSize},
		gate:      make(chan struct{}),
	}

	p, err := New(Config{ChunkSize: chunkSize, Workers: 4, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	got, err := p.Run(context.Background(), loader, len(frames))
	assert.Nil(t, got)

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Index)
	assert.ErrorIs(t, err, errBroken)

	// Two loads in the failing chunk, then one held load per other chunk.
	assert.EqualValues(t, 5, loader.loads.Load())
	assert.Less(t, p.Completed(), int64(len(frames)))
}

func TestRun_ContextCancelled(t *testing.T) {
	frames := ramp(4)
	p, err := New(Config{ChunkSize: 1, Workers: 2, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := p.Run(ctx, source.NewMemory(30, frames...), len(frames))
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Empty(t *testing.T) {
	p, err := New(Config{ChunkSize: 4, Workers: 2, NewCodec: thresholdFactory(t)})
	require.NoError(t, err)

	got, err := p.Run(context.Background(), source.NewMemory(30), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
