package bench

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

// BenchmarkRunner appends entries through the journal writer while readers
// tail the journal concurrently.
type BenchmarkRunner struct {
	Journal    *journal.Journal[[]byte]
	NumEntries int
	EntrySize  int
	NumReaders int
	// CommitEvery commits after that many appends; 0 disables commits and
	// readers use ModeAll.
	CommitEvery int
}

type Result struct {
	Entries       int
	Readers       int
	AppendElapsed time.Duration
	ReadElapsed   time.Duration
	Bytes         int64
}

func (r Result) AppendThroughput() float64 {
	if r.AppendElapsed <= 0 {
		return 0
	}
	return float64(r.Entries) / r.AppendElapsed.Seconds()
}

func (r Result) ReadThroughput() float64 {
	if r.ReadElapsed <= 0 || r.Readers == 0 {
		return 0
	}
	return float64(r.Entries*r.Readers) / r.ReadElapsed.Seconds()
}

func NewBenchmarkRunner(j *journal.Journal[[]byte], entries, entrySize, readers, commitEvery int) *BenchmarkRunner {
	return &BenchmarkRunner{
		Journal:     j,
		NumEntries:  entries,
		EntrySize:   entrySize,
		NumReaders:  readers,
		CommitEvery: commitEvery,
	}
}

func (b *BenchmarkRunner) Run() (Result, error) {
	w := b.Journal.Writer()
	from := w.NextIndex()
	to := from + uint64(b.NumEntries) - 1

	mode := types.ModeAll
	if b.CommitEvery > 0 {
		mode = types.ModeCommits
	}
	readers := make([]*journal.Reader[[]byte], 0, b.NumReaders)
	for i := 0; i < b.NumReaders; i++ {
		r, err := b.Journal.OpenReader(from, mode)
		if err != nil {
			return Result{}, err
		}
		defer r.Close()
		readers = append(readers, r)
	}

	payload := bytes.Repeat([]byte{'x'}, b.EntrySize)
	errs := make(chan error, b.NumReaders+1)
	// closed when the writer gives up so readers stop waiting for entries
	abort := make(chan struct{})
	var wg sync.WaitGroup

	start := time.Now()
	var appendElapsed time.Duration
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= b.NumEntries; i++ {
			indexed, err := w.Append(payload)
			if err != nil {
				errs <- fmt.Errorf("append: %w", err)
				close(abort)
				return
			}
			if b.CommitEvery > 0 && (i%b.CommitEvery == 0 || i == b.NumEntries) {
				if err := w.Commit(indexed.Index); err != nil {
					errs <- fmt.Errorf("commit: %w", err)
					close(abort)
					return
				}
			}
		}
		appendElapsed = time.Since(start)
	}()

	for id, r := range readers {
		wg.Add(1)
		go func(id int, r *journal.Reader[[]byte]) {
			defer wg.Done()
			for next := from; next <= to; {
				if !r.HasNext() {
					select {
					case <-abort:
						return
					default:
					}
					runtime.Gosched()
					continue
				}
				entry, err := r.Next()
				if err != nil {
					errs <- fmt.Errorf("reader %d: %w", id, err)
					return
				}
				if entry.Index != next {
					errs <- fmt.Errorf("reader %d: expected index %d, got %d", id, next, entry.Index)
					return
				}
				next++
			}
		}(id, r)
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return Result{}, err
	}

	res := Result{
		Entries:       b.NumEntries,
		Readers:       b.NumReaders,
		AppendElapsed: appendElapsed,
		ReadElapsed:   time.Since(start),
		Bytes:         int64(b.NumEntries) * int64(b.EntrySize),
	}
	util.Debug("benchmark finished: %d entries in %v", res.Entries, res.AppendElapsed)
	return res, nil
}

// Report prints a summary of res.
func Report(out io.Writer, level types.StorageLevel, res Result) {
	fmt.Fprintf(out, "\n🧪 BENCHMARK RESULT [%s] 🧪\n", level)
	fmt.Fprintf(out, "-------------------------------------\n")
	fmt.Fprintf(out, " Entries       : %d\n", res.Entries)
	fmt.Fprintf(out, " Readers       : %d\n", res.Readers)
	fmt.Fprintf(out, " Bytes         : %d\n", res.Bytes)
	fmt.Fprintf(out, " Append Time   : %v\n", res.AppendElapsed)
	fmt.Fprintf(out, " Append Rate   : %.2f entries/sec\n", res.AppendThroughput())
	if res.Readers > 0 {
		fmt.Fprintf(out, " Read Time     : %v\n", res.ReadElapsed)
		fmt.Fprintf(out, " Read Rate     : %.2f entries/sec\n", res.ReadThroughput())
	}
	fmt.Fprintf(out, "-------------------------------------\n")
}
