package queue

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 64
)

type job struct {
	index int
	row   ports.ImportRow
}

// Dispatcher routes import rows to a fixed set of workers using consistent
// hashing on (email, org), so rows naming the same identity are processed
// one after another in file order.
type Dispatcher struct {
	numWorkers int
	log        zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Dispatcher{
		numWorkers: numWorkers,
		log:        log.With().Str("component", "dispatcher").Logger(),
	}
}

// Run processes every row and returns one error slot per row, in input
// order. Rows not yet started when ctx is cancelled report ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, processor ports.RowProcessor, rows []ports.ImportRow) []error {
	results := make([]error, len(rows))
	if len(rows) == 0 {
		return results
	}

	workers := make([]chan job, d.numWorkers)
	var wg sync.WaitGroup
	for i := range workers {
		workers[i] = make(chan job, channelBuffer)
		wg.Add(1)
		go func(id int, ch <-chan job) {
			defer wg.Done()
			d.runWorker(ctx, id, processor, ch, results)
		}(i, workers[i])
	}

	d.enqueue(ctx, workers, rows, results)

	for _, ch := range workers {
		close(ch)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) enqueue(ctx context.Context, workers []chan job, rows []ports.ImportRow, results []error) {
	for i, row := range rows {
		select {
		case <-ctx.Done():
			for j := i; j < len(rows); j++ {
				results[j] = ctx.Err()
			}
			return
		case workers[d.shardIndex(row.Input.Email, row.Input.Org)] <- job{index: i, row: row}:
		}
	}
}

// shardIndex maps an identity deterministically to a worker index.
func (d *Dispatcher) shardIndex(email, org string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.TrimSpace(org)))
	return int(h.Sum32() % uint32(d.numWorkers))
}

// runWorker writes only the result slots of the jobs it receives, so no
// locking is needed around results.
func (d *Dispatcher) runWorker(ctx context.Context, id int, processor ports.RowProcessor, ch <-chan job, results []error) {
	for j := range ch {
		if err := ctx.Err(); err != nil {
			results[j.index] = err
			continue
		}
		if err := processor.ProcessRow(ctx, j.row); err != nil {
			d.log.Debug().Err(err).
				Int("line", j.row.Line).
				Int("worker_id", id).
				Msg("row processing failed")
			results[j.index] = err
		}
	}
}
