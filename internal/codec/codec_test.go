package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/vidflut/internal/color"
	"github.com/llehouerou/vidflut/internal/frame"
)

func gray(v uint8) color.Color { return color.New(v, v, v) }

func row(colors ...color.Color) *frame.Frame {
	f, err := frame.New(len(colors), 1, colors)
	if err != nil {
		panic(err)
	}
	return f
}

func TestThreshold_FirstFrameIsFull(t *testing.T) {
	c := NewThreshold(PresetMedium)
	f := frame.Filled(3, 2, gray(10))

	u := c.Compress(f)

	require.True(t, u.IsFull())
	assert.Equal(t, 3, u.Width())
	assert.Equal(t, 2, u.Height())
	assert.True(t, c.Reconstruction().Equal(f))
}

func TestThreshold_BlackToWhite(t *testing.T) {
	for _, p := range []Preset{PresetLow, PresetMedium, PresetHigh, PresetExtreme} {
		t.Run(p.String(), func(t *testing.T) {
			c := NewThreshold(p)
			black := frame.Filled(4, 3, gray(0))
			white := frame.Filled(4, 3, gray(255))

			first := c.Compress(black)
			second := c.Compress(white)

			require.True(t, first.IsFull())
			assert.Equal(t, gray(0), first.Data()[0])

			require.True(t, second.IsDelta())
			assert.Len(t, second.Pixels(), 12)
			for _, px := range second.Pixels() {
				assert.Equal(t, gray(255), px.Color)
			}
		})
	}
}

func TestThreshold_SubThresholdNudgeIsEmpty(t *testing.T) {
	c := NewThreshold(PresetMedium)
	base := frame.Filled(3, 3, gray(100))
	nudged := base.MustApply(frame.Delta([]frame.Pixel{{X: 1, Y: 1, Color: gray(103)}}))

	c.Compress(base)
	u := c.Compress(nudged)

	assert.True(t, u.IsEmpty(), "got %s", u)
}

func TestThreshold_DiffsAgainstReconstruction(t *testing.T) {
	// Medium skips luma changes up to 7. Two +5 steps are each below the
	// threshold, but the second one is 10 away from what was sent.
	c := NewThreshold(PresetMedium)

	c.Compress(row(gray(100)))
	second := c.Compress(row(gray(105)))
	third := c.Compress(row(gray(110)))

	assert.True(t, second.IsEmpty())
	require.True(t, third.IsDelta())
	assert.Equal(t, gray(110), third.Pixels()[0].Color)
	assert.Equal(t, gray(110), c.Reconstruction().At(0, 0))
}

func TestThreshold_ChromaGate(t *testing.T) {
	// (0,0,80) moves luma by 9, below High's 15, but chroma by 43, above
	// the dark-pixel chroma tolerance of 32.
	c := NewThreshold(PresetHigh)
	c.Compress(row(color.New(0, 0, 0)))

	u := c.Compress(row(color.New(0, 0, 80)))
	require.True(t, u.IsDelta(), "blue shift in a dark pixel should be sent")

	// The same shift on a bright pixel is judged against a stricter tolerance.
	assert.Less(t, chromaThreshold(PresetHigh, 255), chromaThreshold(PresetHigh, 0))
}

func TestThreshold_NoneSendsEveryVisibleChange(t *testing.T) {
	c := NewThreshold(PresetNone)
	c.Compress(row(gray(100), gray(100)))

	u := c.Compress(row(gray(101), gray(100)))
	require.True(t, u.IsDelta())
	assert.Equal(t, []frame.Pixel{{X: 0, Y: 0, Color: gray(101)}}, u.Pixels())
}

func TestChromaThreshold_NonIncreasingInLuma(t *testing.T) {
	for _, p := range []Preset{PresetNone, PresetLow, PresetMedium, PresetHigh, PresetExtreme} {
		prev := chromaThreshold(p, 0)
		for y := 1; y <= 255; y++ {
			cur := chromaThreshold(p, uint8(y))
			if cur > prev {
				t.Fatalf("%s: chromaThreshold(%d) = %d > chromaThreshold(%d) = %d", p, y, cur, y-1, prev)
			}
			prev = cur
		}
	}
}

func TestLumaThreshold_IncreasesWithPreset(t *testing.T) {
	presets := []Preset{PresetNone, PresetLow, PresetMedium, PresetHigh, PresetExtreme}
	for i := 1; i < len(presets); i++ {
		assert.Greater(t, lumaThreshold(presets[i]), lumaThreshold(presets[i-1]))
	}
}

func TestBudget_TopKWithScanOrderTies(t *testing.T) {
	prev := row(gray(0), gray(0), gray(0), gray(0), gray(0))
	next := row(gray(50), gray(200), gray(200), gray(100), gray(0))

	tests := []struct {
		name    string
		k       int
		wantIdx []int
	}{
		{"k=1", 1, []int{1}},
		{"k=2 tie broken by index", 2, []int{1, 2}},
		{"k=3", 3, []int{1, 2, 3}},
		{"k larger than candidates", 10, []int{1, 2, 3, 0}},
		{"unlimited", 0, []int{1, 2, 3, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBudget(tt.k)
			c.Compress(prev)
			u := c.Compress(next)

			require.True(t, u.IsDelta())
			got := make([]int, 0, u.Len())
			for _, px := range u.Pixels() {
				got = append(got, px.X)
				assert.Equal(t, next.At(px.X, 0), px.Color)
			}
			assert.Equal(t, tt.wantIdx, got)
		})
	}
}

func TestBudget_NeverExceedsBudget(t *testing.T) {
	const w, h, k = 16, 16, 7
	c := NewBudget(k)
	c.Compress(frame.Filled(w, h, gray(0)))

	for step := 1; step <= 5; step++ {
		u := c.Compress(frame.Filled(w, h, gray(uint8(step*40))))
		assert.LessOrEqual(t, u.Len(), k)
	}
}

func TestBudget_NoiseFloorIsEmpty(t *testing.T) {
	c := NewBudget(100)
	c.Compress(row(color.New(0, 0, 0), gray(100)))

	u := c.Compress(row(color.New(1, 0, 0), gray(101)))
	assert.True(t, u.IsEmpty(), "got %s", u)
}

func TestBudget_ConvergesOverFrames(t *testing.T) {
	c := NewBudget(2)
	c.Compress(frame.Filled(3, 2, gray(0)))
	target := frame.Filled(3, 2, gray(255))

	for range 3 {
		c.Compress(target)
	}
	assert.True(t, c.Reconstruction().Equal(target))
	assert.True(t, c.Compress(target).IsEmpty())
}

func TestStream_ResolutionChangeRestartsWithFull(t *testing.T) {
	c := NewBudget(0)
	c.Compress(frame.Filled(2, 2, gray(0)))

	u := c.Compress(frame.Filled(3, 3, gray(0)))
	require.True(t, u.IsFull())
	assert.Equal(t, 3, u.Width())
}

func TestWithDebug(t *testing.T) {
	inner := NewThreshold(PresetMedium)
	c := WithDebug(inner)

	base := frame.Filled(3, 1, gray(0))
	changed := row(gray(0), gray(255), gray(0))

	first := c.Compress(base)
	require.True(t, first.IsFull())
	assert.Equal(t, gray(0), first.Data()[0])

	second := c.Compress(changed)
	require.True(t, second.IsFull())
	assert.Equal(t, []color.Color{color.Gray, gray(255), color.Gray}, second.Data())

	// The real reconstruction tracks the delta, not the gray canvas.
	assert.True(t, inner.Reconstruction().Equal(changed))

	third := c.Compress(changed)
	require.True(t, third.IsFull())
	assert.Equal(t, []color.Color{color.Gray, color.Gray, color.Gray}, third.Data())
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"threshold preset", Options{Algorithm: AlgorithmThreshold, Level: PresetLevel(PresetHigh)}, nil},
		{"threshold numeric", Options{Algorithm: AlgorithmThreshold, Level: BudgetLevel(10)}, ErrInvalidLevel},
		{"budget numeric", Options{Algorithm: AlgorithmBudget, Level: BudgetLevel(10), FPS: 30}, nil},
		{"budget preset", Options{Algorithm: AlgorithmBudget, Level: PresetLevel(PresetLow), FPS: 30}, nil},
		{"budget without fps", Options{Algorithm: AlgorithmBudget, Level: BudgetLevel(10)}, ErrInvalidLevel},
		{"unknown", Options{Algorithm: "zip", Level: PresetLevel(PresetLow)}, ErrUnknownAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactory(tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, factory())
		})
	}
}

func TestNewFactory_IndependentInstances(t *testing.T) {
	factory, err := NewFactory(Options{Algorithm: AlgorithmThreshold, Level: PresetLevel(PresetMedium)})
	require.NoError(t, err)

	a, b := factory(), factory()
	a.Compress(frame.Filled(2, 2, gray(0)))

	assert.True(t, b.Compress(frame.Filled(2, 2, gray(0))).IsFull(), "second instance shared state with the first")
}

func TestNewFactory_Debug(t *testing.T) {
	factory, err := NewFactory(Options{Algorithm: AlgorithmThreshold, Level: PresetLevel(PresetMedium), Debug: true})
	require.NoError(t, err)

	c := factory()
	c.Compress(frame.Filled(2, 1, gray(0)))
	assert.True(t, c.Compress(frame.Filled(2, 1, gray(0))).IsFull())
}

func TestNewFactory_BudgetPerFrame(t *testing.T) {
	factory, err := NewFactory(Options{Algorithm: AlgorithmBudget, Level: BudgetLevel(10), FPS: 30})
	require.NoError(t, err)

	b, ok := factory().(*Budget)
	require.True(t, ok)
	assert.Equal(t, 341, b.perFrame)
}
