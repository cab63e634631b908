package main

import (
	"testing"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/a2mainz/acqu_decoder/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessWorkerResultsKeepsFileOrder(t *testing.T) {
	results := make(chan WorkerResult, 5)
	for _, seq := range []int{2, 0, 3, 1, 4} {
		var event *reconstruct.ReconstructedEvent
		if seq != 3 {
			event = &reconstruct.ReconstructedEvent{
				ID:         decoder.ID{Lower: uint32(seq)},
				Candidates: make([]reconstruct.Candidate, seq),
			}
		}
		results <- WorkerResult{Seq: seq, Event: event}
	}
	close(results)

	summary := report.NewSummary(1)
	require.NoError(t, processWorkerResults(results, nil, summary))
	assert.Equal(t, 4, summary.Events, "the failed event is dropped")
	assert.Equal(t, 0+1+2+4, summary.Candidates)
}

func TestReconstructEvent(t *testing.T) {
	r := reconstruct.NewReconstructor(reconstruct.NewSetup(), nil, reconstruct.Config{})
	result := reconstructEvent(1, r, WorkerData{Seq: 7, Event: &decoder.Event{}})
	assert.Equal(t, 7, result.Seq)
	require.NotNil(t, result.Event)
	assert.Empty(t, result.Event.Candidates)

	// a nil event panics inside the reconstructor
	result = reconstructEvent(1, r, WorkerData{Seq: 8})
	assert.Equal(t, 8, result.Seq)
	assert.Nil(t, result.Event)
}
