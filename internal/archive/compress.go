package archive

import (
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressorPool implements spec.md §4.1's "thread-pool of min(8, cpu_count)
// compressor threads; the pool is initialized exactly once per process."
// A goroutine-backed worker pool plays the role of "threads" here; each
// worker owns its own *zstd.Encoder so encoders are never shared across
// goroutines.
type compressorPool struct {
	jobs chan compressJob
}

type compressJob struct {
	data   []byte
	result chan<- compressResult
}

type compressResult struct {
	out []byte
	err error
}

const minChunkBytes = 8 << 20 // 8 MiB, per spec.md §4.1 chunk-size floor.

var (
	poolOnce sync.Once
	pool     *compressorPool
	poolErr  error
)

// globalCompressorPool returns the process-wide compressor pool,
// initializing it exactly once.
func globalCompressorPool() (*compressorPool, error) {
	poolOnce.Do(func() {
		workers := runtime.NumCPU()
		if workers > 8 {
			workers = 8
		}
		if workers < 1 {
			workers = 1
		}
		p := &compressorPool{jobs: make(chan compressJob, workers*2)}
		for i := 0; i < workers; i++ {
			go p.worker()
		}
		pool = p
	})
	return pool, poolErr
}

func (p *compressorPool) worker() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(9)))
	if err != nil {
		// Encoder construction failures are reported per-job below; keep
		// draining so callers don't deadlock.
		for job := range p.jobs {
			job.result <- compressResult{err: err}
		}
		return
	}
	defer enc.Close()
	for job := range p.jobs {
		job.result <- compressResult{out: chunkAndCompress(enc, job.data)}
	}
}

// chunkAndCompress compresses data as a single zstd frame. Each job carries
// one whole dataset and is encoded in one call: the data is not split into
// chunks, and minChunkBytes is not consulted here.
func chunkAndCompress(enc *zstd.Encoder, data []byte) []byte {
	return enc.EncodeAll(data, nil)
}

// compress submits data to the pool and waits for the result.
func (p *compressorPool) compress(data []byte) ([]byte, error) {
	result := make(chan compressResult, 1)
	p.jobs <- compressJob{data: data, result: result}
	r := <-result
	return r.out, r.err
}
