package decoder

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/a2mainz/acqu_decoder/pkg/detector"
	"github.com/stretchr/testify/require"
)

const testRecordLength = 0x8000

var (
	cbEnergy = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Integral, Element: 0}
	cbTime   = detector.LogicalChannel{Detector: detector.CB, ChannelType: detector.Time, Element: 0}
	pidE     = detector.LogicalChannel{Detector: detector.PID, ChannelType: detector.Integral, Element: 3}
)

func testHeader() HeaderInfo {
	return HeaderInfo{
		Time:        time.Date(2014, time.April, 10, 12, 0, 0, 0, time.UTC),
		Description: "Test run",
		RunNote:     "synthetic",
		OutFile:     "scratch/CBTaggTAPS_1234.dat",
		RunNumber:   1234,
	}
}

func testModules() []ModuleInfoMk2 {
	return []ModuleInfoMk2{
		{ModID: ECAEN_V792, ModIndex: 0, ModType: int32(EDAQ_ADC), Amin: 0, NChannel: 32, Bits: 12},
		{ModID: ESIS_3820, ModIndex: 1, ModType: int32(EDAQ_Scaler), Amin: 0, NScChannel: 32, Bits: 32},
		{ModID: EVUPROM, ModIndex: 2, ModType: int32(EDAQ_ADC | EDAQ_Scaler), Amin: 32, NChannel: 16, NScChannel: 64, Bits: 16},
	}
}

func testSetup() SetupList {
	return SetupList{{
		Name:   "test",
		MinRun: 1000,
		MaxRun: 2000,
		Mappings: Mappings{
			HitMappings: []HitMapping{
				{LogicalChannel: cbEnergy, RawChannels: []RawChannel{{RawChannel: 1}}},
				{LogicalChannel: cbTime, RawChannels: []RawChannel{{RawChannel: 2}}},
				{LogicalChannel: pidE, RawChannels: []RawChannel{{RawChannel: 3}}},
			},
			ScalerMappings: []ScalerMapping{{
				SlowControlName: "Beampolmon",
				Entries: []ScalerEntry{
					{LogicalChannel: 0, RawChannel: 10},
					{LogicalChannel: 1, RawChannel: 11},
				},
			}},
		},
	}}
}

// encodeFile writes a header record followed by whatever fill writes.
func encodeFile(t *testing.T, header HeaderInfo, fill func(enc *Mk2Encoder)) []byte {
	t.Helper()
	var out bytes.Buffer
	enc := NewMk2Encoder(&out, testRecordLength)
	require.NoError(t, enc.WriteHeader(header, testModules()))
	if fill != nil {
		fill(enc)
	}
	require.NoError(t, enc.Close())
	return out.Bytes()
}

func newTestUnpacker(t *testing.T, data []byte) *Unpacker {
	t.Helper()
	reader, err := NewRawFileReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	u, err := NewUnpacker(reader, testSetup())
	require.NoError(t, err)
	return u
}

func readAll(t *testing.T, u *Unpacker) []*Event {
	t.Helper()
	var events []*Event
	for {
		event, err := u.NextEvent()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

func messagesOf(events []*Event, level MessageLevel) []Message {
	var messages []Message
	for _, event := range events {
		for _, m := range event.UnpackerMessages {
			if m.Level == level {
				messages = append(messages, m)
			}
		}
	}
	return messages
}

func hitEvent(hits ...[2]uint16) *RawEvent {
	event := &RawEvent{}
	for _, h := range hits {
		event.AddHit(h[0], h[1])
	}
	return event
}
