// Package broker distributes chunks across a bounded pool of worker threads
// and drives each chunk through the multi-pass encode pipeline.
//
// All chunks are enqueued up front on a bounded channel; each worker locks
// its OS thread, restricts it to its planned CPU cores, and then consumes
// chunks until the channel drains. A worker whose pipeline fails stops
// consuming and raises an advisory failure signal, but never cancels its
// siblings: remaining chunks continue on the surviving workers.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"parenc/affinity"
	"parenc/checkpoint"
	"parenc/config"
	"parenc/internal/textutil"
	"parenc/metrics"
	"parenc/models"
)

// maxTries is the number of attempts each encode pass gets before the
// chunk's pipeline gives up.
const maxTries = 3

// outputIndent prefixes captured encoder output inside warning logs.
const outputIndent = "        "

// EncodeError reports a failed encode attempt: the encoder process exit
// status and whatever diagnostic text it produced.
type EncodeError struct {
	Status int
	Output string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoder exited with status %d", e.Status)
}

// Encoder runs a single encode pass for a chunk. Any returned error is
// eligible for retry; an *EncodeError carries the captured diagnostics.
type Encoder interface {
	Encode(chunk *models.Chunk, pass, workerID int) error
}

// TargetQuality is the optional per-shot quality search run once per chunk
// before the pass loop. It may mutate the chunk's encode parameters; the
// broker does not observe its outcome.
type TargetQuality interface {
	PerShotRoutine(chunk *models.Chunk)
}

// FrameCounter is the oracle that counts frames in an encoded artifact.
type FrameCounter interface {
	NumFrames(path string) (int, error)
}

// Progress receives a finish notification once the whole pool run completes.
// Finish corresponds to a single aggregate bar, FinishMulti to per-worker
// bars; the broker picks one based on the configured verbosity.
type Progress interface {
	Finish()
	FinishMulti()
}

// Broker owns the chunk queue and coordinates the worker pool.
type Broker struct {
	chunkQueue []models.Chunk
	cfg        *config.Config

	encoder       Encoder
	frames        FrameCounter
	targetQuality TargetQuality
	progress      Progress
	stats         *metrics.Metrics

	done *checkpoint.Store
	log  *slog.Logger

	runID      string
	totalCores int

	// applyAffinity is swappable so tests can run the pool without
	// touching the host's scheduler state.
	applyAffinity func(cores []int) error
}

// New creates a Broker over the given chunk queue.
func New(chunks []models.Chunk, cfg *config.Config, encoder Encoder, frames FrameCounter, done *checkpoint.Store, log *slog.Logger) *Broker {
	return &Broker{
		chunkQueue:    chunks,
		cfg:           cfg,
		encoder:       encoder,
		frames:        frames,
		done:          done,
		log:           log,
		runID:         uuid.NewString(),
		totalCores:    runtime.NumCPU(),
		applyAffinity: affinity.Apply,
	}
}

// SetTargetQuality installs the optional per-shot quality routine.
func (b *Broker) SetTargetQuality(tq TargetQuality) *Broker {
	b.targetQuality = tq
	return b
}

// SetProgress installs the optional progress sink.
func (b *Broker) SetProgress(p Progress) *Broker {
	b.progress = p
	return b
}

// SetMetrics installs the optional metrics collector.
func (b *Broker) SetMetrics(m *metrics.Metrics) *Broker {
	b.stats = m
	return b
}

// EncodingLoop runs the pool to completion.
//
// With an empty queue it does nothing: no workers are spawned and no
// progress-finish notification fires. Otherwise it enqueues every chunk,
// closes the queue, runs exactly cfg.Workers workers and joins them all
// before notifying the progress sink.
//
// failure receives at most one advisory notification when any worker's
// pipeline fails unrecoverably. The send never blocks; callers that care
// should pass a buffered channel and check it after EncodingLoop returns.
func (b *Broker) EncodingLoop(failure chan<- struct{}) {
	if len(b.chunkQueue) == 0 {
		return
	}

	queue := make(chan models.Chunk, len(b.chunkQueue))
	for _, chunk := range b.chunkQueue {
		queue <- chunk
	}
	close(queue)

	log := b.log.With("run_id", b.runID)
	log.Info("starting workers", "workers", b.cfg.Workers, "chunks", len(b.chunkQueue), "passes", b.cfg.Passes)

	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			b.worker(queue, workerID, failure, log)
		}(i)
	}
	wg.Wait()

	if b.progress != nil {
		switch b.cfg.Verbosity {
		case config.VerbosityNormal:
			b.progress.Finish()
		case config.VerbosityVerbose:
			b.progress.FinishMulti()
		}
	}
}

// worker consumes chunks until the queue drains or a pipeline fails.
func (b *Broker) worker(queue <-chan models.Chunk, workerID int, failure chan<- struct{}, log *slog.Logger) {
	// The affinity mask is per-thread OS state, so this goroutine must
	// stay on one thread for the lifetime of the worker.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if b.stats != nil {
		b.stats.WorkerStarted()
		defer b.stats.WorkerStopped()
	}

	cores := b.planCores(workerID)
	if err := b.applyAffinity(cores); err != nil {
		log.Error("failed to pin worker to cores", "worker", workerID, "cores", cores, "error", err)
		notify(failure)
		return
	}
	log.Debug("worker pinned", "worker", workerID, "cores", cores)

	for chunk := range queue {
		if err := b.encodeChunk(&chunk, workerID, log); err != nil {
			if b.stats != nil {
				b.stats.IncChunksFailed()
			}
			notify(failure)
			return
		}
	}
}

// planCores computes the worker's core set using the configured wraparound.
func (b *Broker) planCores(workerID int) []int {
	if b.cfg.AffinityWrapCores {
		return affinity.PlanWrapCores(b.totalCores, b.cfg.Workers, workerID)
	}
	return affinity.Plan(b.totalCores, b.cfg.Workers, workerID)
}

// encodeChunk runs one chunk's pipeline: optional quality routine, the
// pass/retry loop, output verification, checkpoint commit.
//
// Only an exhausted-retry failure (or a pipeline fault: oracle or checkpoint
// I/O error) returns an error. A frame-count mismatch withholds the
// checkpoint entry but still resolves as success.
func (b *Broker) encodeChunk(chunk *models.Chunk, workerID int, log *slog.Logger) error {
	start := time.Now()

	log.Info("encoding chunk", "chunk", chunk.Index, "frames", chunk.Frames, "worker", workerID)

	if b.targetQuality != nil {
		b.targetQuality.PerShotRoutine(chunk)
	}

	for pass := 1; pass <= b.cfg.Passes; pass++ {
		if err := b.runPass(chunk, pass, workerID, log); err != nil {
			return err
		}
	}

	actual, err := b.frames.NumFrames(chunk.Output)
	if err != nil {
		log.Error("frame count oracle failed", "chunk", chunk.Index, "output", chunk.Output, "error", err)
		return fmt.Errorf("failed to count frames for chunk %d: %w", chunk.Index, err)
	}

	if actual != chunk.Frames {
		log.Warn("frame mismatch", "chunk", chunk.Index, "actual", actual, "expected", chunk.Frames)
		if b.stats != nil {
			b.stats.IncFrameMismatches()
		}
		return nil
	}

	if err := b.done.Complete(chunk.Name, actual); err != nil {
		log.Error("checkpoint write failed", "chunk", chunk.Index, "error", err)
		return err
	}

	elapsed := time.Since(start)
	if b.stats != nil {
		b.stats.IncChunksCompleted()
		b.stats.AddFramesEncoded(actual)
	}

	log.Info("chunk done", "chunk", chunk.Index, "frames", actual, "expected", chunk.Frames)
	log.Info("chunk throughput",
		"chunk", chunk.Index,
		"fps", fmt.Sprintf("%.2f", float64(actual)/elapsed.Seconds()),
		"elapsed", elapsed.Round(time.Millisecond))

	return nil
}

// runPass retries a single encode pass up to maxTries times with no backoff.
func (b *Broker) runPass(chunk *models.Chunk, pass, workerID int, log *slog.Logger) error {
	for try := 1; try <= maxTries; try++ {
		err := b.encoder.Encode(chunk, pass, workerID)
		if err == nil {
			return nil
		}

		status, output := -1, err.Error()
		var encErr *EncodeError
		if errors.As(err, &encErr) {
			status, output = encErr.Status, encErr.Output
		}

		log.Warn(fmt.Sprintf("encoder failed (on chunk %d) with status %d:\n%s",
			chunk.Index, status, textutil.Indent(output, outputIndent)))

		if try == maxTries {
			log.Error("encoder crashed, terminating worker", "chunk", chunk.Index, "tries", maxTries, "pass", pass)
			return fmt.Errorf("chunk %d pass %d failed after %d tries: %w", chunk.Index, pass, maxTries, err)
		}

		if b.stats != nil {
			b.stats.IncEncodeRetries()
		}
	}
	return nil
}

// notify raises the advisory failure signal without ever blocking: the
// signal carries no identity, so one pending notification is enough.
func notify(failure chan<- struct{}) {
	if failure == nil {
		return
	}
	select {
	case failure <- struct{}{}:
	default:
	}
}
