package main

import (
	"errors"
	"fmt"
	"io"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/output"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/a2mainz/acqu_decoder/pkg/report"
)

type WorkerData struct {
	Seq   int
	Event *decoder.Event
}

// WorkerResult carries the reconstructed event, nil if reconstruction
// failed.
type WorkerResult struct {
	Seq   int
	Event *reconstruct.ReconstructedEvent
}

func reconstructEvent(id int, r *reconstruct.Reconstructor, data WorkerData) (result WorkerResult) {
	result.Seq = data.Seq
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(fmt.Sprintf("Worker %d recovered from panic on event %d: %v", id, data.Seq, rec))
			result.Event = nil
		}
	}()
	result.Event = r.Reconstruct(data.Event)
	return result
}

func worker(id int, r *reconstruct.Reconstructor, jobs <-chan WorkerData, results chan<- WorkerResult) {
	for data := range jobs {
		if VerbosityLevel > 2 {
			logger.Info(fmt.Sprintf("Worker %d processing event %d", id, data.Seq), "workers")
		}
		results <- reconstructEvent(id, r, data)
	}
}

func sendEventsToWorkers(fileReader *FileReader, jobs chan<- WorkerData) {
	defer close(jobs)
	for seq := 0; ; seq++ {
		event, err := fileReader.getNextEvent()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error(fmt.Errorf("error reading event: %w", err).Error())
			}
			return
		}
		jobs <- WorkerData{Seq: seq, Event: event}
	}
}

// processWorkerResults writes the results in file order, holding back the
// ones that arrive early. Results keep being drained after a write error so
// the workers can finish.
func processWorkerResults(results <-chan WorkerResult, writer *output.Writer, summary *report.Summary) error {
	pending := make(map[int]WorkerResult)
	next := 0
	var writeErr error
	for result := range results {
		pending[result.Seq] = result
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if r.Event == nil {
				continue
			}
			summary.Add(r.Event)
			if writer != nil && writeErr == nil {
				writeErr = writer.WriteEvent(r.Event)
			}
		}
	}
	return writeErr
}
