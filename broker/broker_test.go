package broker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"parenc/checkpoint"
	"parenc/config"
	"parenc/models"
)

// encodeCall records one encoder invocation for assertions
type encodeCall struct {
	name      string
	pass      int
	workerID  int
	quantizer int
}

// stubEncoder is a scriptable Encoder: failures[name] failed attempts are
// served for a chunk before it starts succeeding
type stubEncoder struct {
	mu       sync.Mutex
	calls    []encodeCall
	failures map[string]int
}

func (s *stubEncoder) Encode(c *models.Chunk, pass, workerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, encodeCall{c.Name, pass, workerID, c.Quantizer})
	if s.failures[c.Name] > 0 {
		s.failures[c.Name]--
		return &EncodeError{Status: 1, Output: "packet corrupt\nencode aborted"}
	}
	return nil
}

func (s *stubEncoder) callsFor(name string) []encodeCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []encodeCall
	for _, c := range s.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// stubCounter maps output paths to frame counts or faults
type stubCounter struct {
	mu     sync.Mutex
	frames map[string]int
	faults map[string]error
}

func (s *stubCounter) NumFrames(path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.faults[path]; ok {
		return 0, err
	}
	return s.frames[path], nil
}

// stubProgress records finish notifications
type stubProgress struct {
	mu          sync.Mutex
	finish      int
	finishMulti int
}

func (s *stubProgress) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish++
}

func (s *stubProgress) FinishMulti() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishMulti++
}

func testConfig(workers, passes int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = workers
	cfg.Passes = passes
	return cfg
}

func makeChunks(n, frames int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = models.Chunk{
			Index:  i,
			Name:   fmt.Sprintf("%05d", i),
			Source: fmt.Sprintf("/w/split/%05d.mkv", i),
			Frames: frames,
			Output: fmt.Sprintf("/w/encode/%05d.ivf", i),
		}
	}
	return chunks
}

// exactCounter reports every output as having exactly the expected count
func exactCounter(chunks []models.Chunk) *stubCounter {
	frames := make(map[string]int, len(chunks))
	for _, c := range chunks {
		frames[c.Output] = c.Frames
	}
	return &stubCounter{frames: frames}
}

func newTestBroker(t *testing.T, chunks []models.Chunk, cfg *config.Config, enc Encoder, fc FrameCounter) (*Broker, *checkpoint.Store) {
	t.Helper()

	store := checkpoint.New(filepath.Join(t.TempDir(), checkpoint.FileName))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := New(chunks, cfg, enc, fc, store, log)
	b.totalCores = 8
	b.applyAffinity = func([]int) error { return nil }
	return b, store
}

// TestEncodingLoop_AllChunksComplete tests the happy path end to end
func TestEncodingLoop_AllChunksComplete(t *testing.T) {
	chunks := makeChunks(6, 120)
	enc := &stubEncoder{failures: map[string]int{}}
	b, store := newTestBroker(t, chunks, testConfig(3, 1), enc, exactCounter(chunks))

	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
		t.Error("Unexpected failure signal")
	default:
	}

	if store.Len() != 6 {
		t.Errorf("Expected 6 checkpointed chunks, got %d", store.Len())
	}
	for _, c := range chunks {
		frames, ok := store.Frames(c.Name)
		if !ok {
			t.Errorf("Chunk %s missing from checkpoint", c.Name)
			continue
		}
		if frames != c.Frames {
			t.Errorf("Chunk %s checkpointed with %d frames, want %d", c.Name, frames, c.Frames)
		}
	}
}

// TestEncodingLoop_ExactlyOnceDelivery verifies no chunk is processed twice
// for any worker count
func TestEncodingLoop_ExactlyOnceDelivery(t *testing.T) {
	const n = 20
	for _, workers := range []int{1, 2, 5, n} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			chunks := makeChunks(n, 60)
			enc := &stubEncoder{failures: map[string]int{}}
			b, _ := newTestBroker(t, chunks, testConfig(workers, 1), enc, exactCounter(chunks))

			b.EncodingLoop(nil)

			counts := make(map[string]int)
			for _, call := range enc.calls {
				counts[call.name]++
			}
			if len(counts) != n {
				t.Errorf("Expected %d distinct chunks encoded, got %d", n, len(counts))
			}
			for name, count := range counts {
				if count != 1 {
					t.Errorf("Chunk %s encoded %d times, want exactly once", name, count)
				}
			}
		})
	}
}

// TestRunPass_RetryBound verifies exactly 3 attempts before failure and
// exactly k attempts on a k-th-try success
func TestRunPass_RetryBound(t *testing.T) {
	t.Run("always failing", func(t *testing.T) {
		chunks := makeChunks(1, 60)
		enc := &stubEncoder{failures: map[string]int{"00000": 1 << 20}}
		b, store := newTestBroker(t, chunks, testConfig(1, 1), enc, exactCounter(chunks))

		failure := make(chan struct{}, 1)
		b.EncodingLoop(failure)

		if got := len(enc.callsFor("00000")); got != 3 {
			t.Errorf("Expected exactly 3 attempts, got %d", got)
		}
		select {
		case <-failure:
		default:
			t.Error("Expected failure signal after exhausted retries")
		}
		if store.Len() != 0 {
			t.Errorf("Failed chunk must not be checkpointed, got %d entries", store.Len())
		}
	})

	for k := 1; k <= 3; k++ {
		t.Run(fmt.Sprintf("succeeds on attempt %d", k), func(t *testing.T) {
			chunks := makeChunks(1, 60)
			enc := &stubEncoder{failures: map[string]int{"00000": k - 1}}
			b, store := newTestBroker(t, chunks, testConfig(1, 1), enc, exactCounter(chunks))

			failure := make(chan struct{}, 1)
			b.EncodingLoop(failure)

			if got := len(enc.callsFor("00000")); got != k {
				t.Errorf("Expected exactly %d attempts, got %d", k, got)
			}
			select {
			case <-failure:
				t.Error("Unexpected failure signal")
			default:
			}
			if _, ok := store.Frames("00000"); !ok {
				t.Error("Recovered chunk should be checkpointed")
			}
		})
	}
}

// TestEncodeChunk_MultiPass verifies each pass runs in order after the
// previous one succeeds
func TestEncodeChunk_MultiPass(t *testing.T) {
	chunks := makeChunks(1, 60)
	enc := &stubEncoder{failures: map[string]int{}}
	b, _ := newTestBroker(t, chunks, testConfig(1, 2), enc, exactCounter(chunks))

	b.EncodingLoop(nil)

	calls := enc.callsFor("00000")
	if len(calls) != 2 {
		t.Fatalf("Expected 2 pass invocations, got %d", len(calls))
	}
	if calls[0].pass != 1 || calls[1].pass != 2 {
		t.Errorf("Expected passes [1 2], got [%d %d]", calls[0].pass, calls[1].pass)
	}
}

// TestEncodeChunk_RetrySpansOnePass verifies a failed first pass is retried
// before the second pass ever runs
func TestEncodeChunk_RetrySpansOnePass(t *testing.T) {
	chunks := makeChunks(1, 60)
	enc := &stubEncoder{failures: map[string]int{"00000": 2}}
	b, _ := newTestBroker(t, chunks, testConfig(1, 2), enc, exactCounter(chunks))

	b.EncodingLoop(nil)

	calls := enc.callsFor("00000")
	if len(calls) != 4 {
		t.Fatalf("Expected 4 invocations (3 tries of pass 1, 1 of pass 2), got %d", len(calls))
	}
	wantPasses := []int{1, 1, 1, 2}
	for i, call := range calls {
		if call.pass != wantPasses[i] {
			t.Errorf("Invocation %d: pass %d, want %d", i, call.pass, wantPasses[i])
		}
	}
}

// TestEncodeChunk_MismatchWithholding verifies a frame mismatch withholds the
// checkpoint entry but does not fail the pipeline
func TestEncodeChunk_MismatchWithholding(t *testing.T) {
	chunks := makeChunks(2, 120)
	enc := &stubEncoder{failures: map[string]int{}}

	counter := exactCounter(chunks)
	counter.frames[chunks[0].Output] = 119 // one frame short

	b, store := newTestBroker(t, chunks, testConfig(1, 1), enc, counter)

	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
		t.Error("Mismatch must not raise the failure signal")
	default:
	}

	if _, ok := store.Frames("00000"); ok {
		t.Error("Mismatched chunk must not be checkpointed")
	}
	if _, ok := store.Frames("00001"); !ok {
		t.Error("Worker should continue to the next chunk after a mismatch")
	}
}

// TestEncodeChunk_OracleFault verifies a frame-count fault is a pipeline
// fault: the worker signals failure and stops
func TestEncodeChunk_OracleFault(t *testing.T) {
	chunks := makeChunks(1, 120)
	enc := &stubEncoder{failures: map[string]int{}}

	counter := exactCounter(chunks)
	counter.faults = map[string]error{chunks[0].Output: errors.New("artifact unreadable")}

	b, store := newTestBroker(t, chunks, testConfig(1, 1), enc, counter)

	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
	default:
		t.Error("Expected failure signal on oracle fault")
	}
	if store.Len() != 0 {
		t.Errorf("Faulted chunk must not be checkpointed, got %d entries", store.Len())
	}
}

// TestEncodingLoop_EmptyQueue verifies the no-op contract
func TestEncodingLoop_EmptyQueue(t *testing.T) {
	enc := &stubEncoder{failures: map[string]int{}}
	b, _ := newTestBroker(t, nil, testConfig(4, 1), enc, &stubCounter{})

	affinityCalls := 0
	b.applyAffinity = func([]int) error {
		affinityCalls++
		return nil
	}
	progress := &stubProgress{}
	b.SetProgress(progress)

	b.EncodingLoop(nil)

	if affinityCalls != 0 {
		t.Errorf("Expected no workers spawned, saw %d affinity calls", affinityCalls)
	}
	if progress.finish != 0 || progress.finishMulti != 0 {
		t.Error("Empty queue must not trigger a progress-finish notification")
	}
	if len(enc.calls) != 0 {
		t.Errorf("Expected no encode invocations, got %d", len(enc.calls))
	}
}

// TestEncodingLoop_PartialFailureIsolation verifies one poisoned chunk does
// not stop the surviving worker from draining the queue
func TestEncodingLoop_PartialFailureIsolation(t *testing.T) {
	chunks := makeChunks(8, 60)
	enc := &stubEncoder{failures: map[string]int{"00000": 1 << 20}}
	b, store := newTestBroker(t, chunks, testConfig(2, 1), enc, exactCounter(chunks))

	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
	default:
		t.Error("Expected failure signal for the poisoned chunk")
	}

	// Every chunk except the poisoned one completes.
	if store.Len() != 7 {
		t.Errorf("Expected 7 completed chunks, got %d", store.Len())
	}
	if _, ok := store.Frames("00000"); ok {
		t.Error("Poisoned chunk must not be checkpointed")
	}
}

// TestEncodingLoop_ProgressVerbosity verifies the two-way finish branch
func TestEncodingLoop_ProgressVerbosity(t *testing.T) {
	tests := []struct {
		verbosity       config.Verbosity
		wantFinish      int
		wantFinishMulti int
	}{
		{config.VerbosityQuiet, 0, 0},
		{config.VerbosityNormal, 1, 0},
		{config.VerbosityVerbose, 0, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.verbosity), func(t *testing.T) {
			chunks := makeChunks(2, 60)
			enc := &stubEncoder{failures: map[string]int{}}
			cfg := testConfig(2, 1)
			cfg.Verbosity = tt.verbosity

			b, _ := newTestBroker(t, chunks, cfg, enc, exactCounter(chunks))
			progress := &stubProgress{}
			b.SetProgress(progress)

			b.EncodingLoop(nil)

			if progress.finish != tt.wantFinish {
				t.Errorf("Finish called %d times, want %d", progress.finish, tt.wantFinish)
			}
			if progress.finishMulti != tt.wantFinishMulti {
				t.Errorf("FinishMulti called %d times, want %d", progress.finishMulti, tt.wantFinishMulti)
			}
		})
	}
}

// quantizerRoutine is a TargetQuality stub that pins every chunk to one value
type quantizerRoutine struct {
	mu        sync.Mutex
	quantizer int
	seen      []string
}

func (q *quantizerRoutine) PerShotRoutine(c *models.Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = append(q.seen, c.Name)
	c.Quantizer = q.quantizer
}

// TestEncodeChunk_TargetQuality verifies the routine runs once per chunk
// before the pass loop and its mutation reaches the encoder
func TestEncodeChunk_TargetQuality(t *testing.T) {
	chunks := makeChunks(3, 60)
	enc := &stubEncoder{failures: map[string]int{}}
	b, _ := newTestBroker(t, chunks, testConfig(1, 2), enc, exactCounter(chunks))

	tq := &quantizerRoutine{quantizer: 27}
	b.SetTargetQuality(tq)

	b.EncodingLoop(nil)

	if len(tq.seen) != 3 {
		t.Errorf("Expected quality routine once per chunk, ran %d times", len(tq.seen))
	}
	for _, call := range enc.calls {
		if call.quantizer != 27 {
			t.Errorf("Chunk %s pass %d saw quantizer %d, want 27", call.name, call.pass, call.quantizer)
		}
	}
}

// TestWorker_AffinityFailureIsFatal verifies a worker that cannot pin its
// thread does not consume any chunks
func TestWorker_AffinityFailureIsFatal(t *testing.T) {
	chunks := makeChunks(4, 60)
	enc := &stubEncoder{failures: map[string]int{}}
	b, _ := newTestBroker(t, chunks, testConfig(1, 1), enc, exactCounter(chunks))
	b.applyAffinity = func([]int) error { return errors.New("sched_setaffinity: EINVAL") }

	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
	default:
		t.Error("Expected failure signal when affinity setup fails")
	}
	if len(enc.calls) != 0 {
		t.Errorf("Worker without affinity must not encode, got %d calls", len(enc.calls))
	}
}

// TestNotify_NeverBlocks verifies repeated failures do not deadlock on the
// single-slot failure channel
func TestNotify_NeverBlocks(t *testing.T) {
	chunks := makeChunks(4, 60)
	enc := &stubEncoder{failures: map[string]int{
		"00000": 1 << 20,
		"00001": 1 << 20,
		"00002": 1 << 20,
		"00003": 1 << 20,
	}}
	b, _ := newTestBroker(t, chunks, testConfig(4, 1), enc, exactCounter(chunks))

	failure := make(chan struct{}, 1)
	// Four workers all fail; EncodingLoop must still return.
	b.EncodingLoop(failure)

	select {
	case <-failure:
	default:
		t.Error("Expected at least one failure notification")
	}
}

// TestEncodeError_Message verifies the error surface used in logs
func TestEncodeError_Message(t *testing.T) {
	err := &EncodeError{Status: 137, Output: "oom"}
	want := "encoder exited with status 137"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
