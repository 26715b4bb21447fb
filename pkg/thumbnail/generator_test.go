package thumbnail_test

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/framegrab/pkg/thumbnail"
	"github.com/tauraamui/framegrab/pkg/videobackend"
	"github.com/tauraamui/framegrab/pkg/videoframe"
	"github.com/tauraamui/xerror"
)

const testSettleDelay = time.Millisecond

const resultWaitTimeout = time.Second * 3

type fakeFrame struct {
	at     float64
	closed bool
}

func (f *fakeFrame) DataRef() interface{} {
	return nil
}

func (f *fakeFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: 2, H: 2}
}

func (f *fakeFrame) Timestamp() float64 {
	return f.at
}

func (f *fakeFrame) Close() {
	f.closed = true
}

type fakeAsset struct {
	mu            sync.Mutex
	status        videobackend.Status
	observers     []func(videobackend.Status)
	seeks         []float64
	frames        []*fakeFrame
	failSeekAt    map[float64]bool
	failCopyAt    map[float64]bool
	achievedDrift float64
}

func (f *fakeAsset) UUID() string { return "fake-asset" }

func (f *fakeAsset) Status() videobackend.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeAsset) Notify(observe func(videobackend.Status)) {
	f.mu.Lock()
	f.observers = append(f.observers, observe)
	ready := f.status == videobackend.StatusReady
	f.mu.Unlock()
	if ready {
		observe(videobackend.StatusReady)
	}
}

func (f *fakeAsset) becomeReady() {
	f.mu.Lock()
	f.status = videobackend.StatusReady
	observers := append([]func(videobackend.Status){}, f.observers...)
	f.mu.Unlock()
	for _, observe := range observers {
		observe(videobackend.StatusReady)
	}
}

func (f *fakeAsset) Seek(to, tb, ta float64, done func(finished bool)) {
	f.mu.Lock()
	f.seeks = append(f.seeks, to)
	interrupted := f.failSeekAt[to]
	f.mu.Unlock()
	done(!interrupted)
}

func (f *fakeAsset) CopyFrame(at float64) (videoframe.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopyAt[at] {
		return nil, xerror.New("no decoded frame buffer available")
	}
	frame := fakeFrame{at: at + f.achievedDrift}
	f.frames = append(f.frames, &frame)
	return &frame, nil
}

func (f *fakeAsset) seekLog() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64{}, f.seeks...)
}

func (f *fakeAsset) Close() error { return nil }

type fakeConverter struct {
	mu     sync.Mutex
	failAt map[float64]bool
}

func (c *fakeConverter) Convert(frame videoframe.Frame, _ image.Rectangle) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt != nil && c.failAt[frame.Timestamp()] {
		return nil, xerror.New("conversion rejected")
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func readyAsset() *fakeAsset {
	return &fakeAsset{status: videobackend.StatusReady}
}

func newTestGenerator(asset *fakeAsset, conv *fakeConverter) *thumbnail.Generator {
	return thumbnail.New(asset, conv, thumbnail.WithSettleDelay(testSettleDelay))
}

func collectResults(t *testing.T, results chan thumbnail.Result, count int) []thumbnail.Result {
	t.Helper()
	collected := make([]thumbnail.Result, 0, count)
	for i := 0; i < count; i++ {
		select {
		case res := <-results:
			collected = append(collected, res)
		case <-time.After(resultWaitTimeout):
			t.Fatalf("timed out waiting for result %d of %d", i+1, count)
		}
	}
	return collected
}

func TestEveryEnqueuedTimestampGetsExactlyOneResult(t *testing.T) {
	asset := readyAsset()
	asset.failSeekAt = map[float64]bool{2.0: true}
	asset.failCopyAt = map[float64]bool{3.0: true}

	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 3)
	gen.Enqueue([]float64{1.0, 2.0, 3.0}, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 3)
	require.Len(t, collected, 3)

	select {
	case res := <-results:
		t.Fatalf("unexpected extra result: %+v", res)
	case <-time.After(time.Millisecond * 50):
	}
}

func TestResultsDeliveredInEnqueueOrder(t *testing.T) {
	gen := newTestGenerator(readyAsset(), &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 3)
	gen.Enqueue([]float64{1.0, 2.0, 3.0}, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 3)
	for i, expected := range []float64{1.0, 2.0, 3.0} {
		require.NoError(t, collected[i].Err)
		assert.NotNil(t, collected[i].Image)
		assert.Equal(t, expected, collected[i].Time)
	}
}

func TestTimestampsEnqueuedWhileLoadingHeldUntilReady(t *testing.T) {
	asset := &fakeAsset{}
	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 3)
	gen.Enqueue([]float64{1.0, 2.0, 3.0}, func(res thumbnail.Result) {
		results <- res
	})

	select {
	case res := <-results:
		t.Fatalf("result delivered before asset became ready: %+v", res)
	case <-time.After(time.Millisecond * 50):
	}
	require.Empty(t, asset.seekLog())

	asset.becomeReady()

	collected := collectResults(t, results, 3)
	for i, expected := range []float64{1.0, 2.0, 3.0} {
		assert.Equal(t, expected, collected[i].Time)
	}
	assert.Equal(t, []float64{1.0, 2.0, 3.0}, asset.seekLog())
}

func TestRepeatedReadyNotificationsDoNotRestartDraining(t *testing.T) {
	asset := &fakeAsset{}
	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 2)
	gen.Enqueue([]float64{1.0, 2.0}, func(res thumbnail.Result) {
		results <- res
	})

	asset.becomeReady()
	asset.becomeReady()

	collectResults(t, results, 2)

	// each timestamp must have been sought exactly once
	assert.Equal(t, []float64{1.0, 2.0}, asset.seekLog())
}

func TestInterruptedSeekAbandonsTimestampAndAdvances(t *testing.T) {
	asset := readyAsset()
	asset.failSeekAt = map[float64]bool{1.0: true}

	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 2)
	gen.Enqueue([]float64{1.0, 2.0}, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 2)

	require.ErrorIs(t, collected[0].Err, thumbnail.ErrSeekInterrupted)
	assert.Nil(t, collected[0].Image)
	assert.Equal(t, 1.0, collected[0].Time)

	require.NoError(t, collected[1].Err)
	assert.Equal(t, 2.0, collected[1].Time)
}

func TestUnavailableFrameBufferReportsAndAdvances(t *testing.T) {
	asset := readyAsset()
	asset.failCopyAt = map[float64]bool{1.0: true}

	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 2)
	gen.Enqueue([]float64{1.0, 2.0}, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 2)

	require.ErrorIs(t, collected[0].Err, thumbnail.ErrFrameUnavailable)
	assert.Nil(t, collected[0].Image)
	assert.Equal(t, 1.0, collected[0].Time)

	require.NoError(t, collected[1].Err)
}

func TestFailedConversionReportsIndeterminateTime(t *testing.T) {
	asset := readyAsset()
	conv := fakeConverter{failAt: map[float64]bool{1.0: true}}

	gen := newTestGenerator(asset, &conv)
	defer gen.Close()

	results := make(chan thumbnail.Result, 1)
	gen.GenerateSingle(1.0, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 1)

	require.ErrorIs(t, collected[0].Err, thumbnail.ErrConvertFailed)
	assert.Nil(t, collected[0].Image)
	assert.Equal(t, thumbnail.IndeterminateTime, collected[0].Time)
}

func TestSuccessfulCycleCarriesImageAndAchievedTime(t *testing.T) {
	asset := readyAsset()
	asset.achievedDrift = 0.01

	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 1)
	gen.GenerateSingle(5.0, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 1)

	require.NoError(t, collected[0].Err)
	require.NotNil(t, collected[0].Image)
	assert.InDelta(t, 5.01, collected[0].Time, 1e-9)
}

func TestFrameClosedOnceConversionDone(t *testing.T) {
	asset := readyAsset()
	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 1)
	gen.GenerateSingle(1.0, func(res thumbnail.Result) {
		results <- res
	})

	collectResults(t, results, 1)

	asset.mu.Lock()
	defer asset.mu.Unlock()
	require.Len(t, asset.frames, 1)
	assert.True(t, asset.frames[0].closed)
}

func TestEnqueueDuringActiveDrainRemainsFIFO(t *testing.T) {
	asset := readyAsset()
	gen := thumbnail.New(asset, &fakeConverter{}, thumbnail.WithSettleDelay(time.Millisecond*20))
	defer gen.Close()

	results := make(chan thumbnail.Result, 2)
	deliver := func(res thumbnail.Result) {
		results <- res
	}

	gen.Enqueue([]float64{5.0}, deliver)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gen.Enqueue([]float64{6.0}, deliver)
	}()
	wg.Wait()

	collected := collectResults(t, results, 2)
	assert.Equal(t, 5.0, collected[0].Time)
	assert.Equal(t, 6.0, collected[1].Time)
}

func TestGenerateBatchReportsRequestedTimesAndRemaining(t *testing.T) {
	asset := readyAsset()
	asset.failCopyAt = map[float64]bool{2.0: true}

	gen := newTestGenerator(asset, &fakeConverter{})
	defer gen.Close()

	type batchItem struct {
		requested float64
		res       thumbnail.Result
		remaining int
	}

	items := make(chan batchItem, 3)
	gen.GenerateBatch([]float64{1.0, 2.0, 3.0}, func(requested float64, res thumbnail.Result, remaining int) {
		items <- batchItem{requested: requested, res: res, remaining: remaining}
	})

	collected := make([]batchItem, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case item := <-items:
			collected = append(collected, item)
		case <-time.After(resultWaitTimeout):
			t.Fatalf("timed out waiting for batch item %d of 3", i+1)
		}
	}

	assert.Equal(t, 1.0, collected[0].requested)
	assert.Equal(t, 2, collected[0].remaining)
	require.NoError(t, collected[0].res.Err)

	assert.Equal(t, 2.0, collected[1].requested)
	assert.Equal(t, 1, collected[1].remaining)
	require.ErrorIs(t, collected[1].res.Err, thumbnail.ErrFrameUnavailable)

	assert.Equal(t, 3.0, collected[2].requested)
	assert.Equal(t, 0, collected[2].remaining)
	require.NoError(t, collected[2].res.Err)
}

func TestGenerateSingleDeliversExactlyOneResult(t *testing.T) {
	gen := newTestGenerator(readyAsset(), &fakeConverter{})
	defer gen.Close()

	results := make(chan thumbnail.Result, 2)
	gen.GenerateSingle(4.5, func(res thumbnail.Result) {
		results <- res
	})

	collected := collectResults(t, results, 1)
	require.NoError(t, collected[0].Err)
	assert.Equal(t, 4.5, collected[0].Time)

	select {
	case res := <-results:
		t.Fatalf("unexpected extra result: %+v", res)
	case <-time.After(time.Millisecond * 50):
	}
}
