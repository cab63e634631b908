package decoder

import (
	"fmt"
	"iter"
)

// HitStorage collects the raw values of every hardware channel seen in one
// event. Channels keep their first-insertion order across events, and Clear
// only truncates the value lists so the allocations are reused.
type HitStorage struct {
	index    map[uint16]int
	channels []uint16
	values   [][]uint16
}

func NewHitStorage() *HitStorage {
	return &HitStorage{index: make(map[uint16]int)}
}

func (s *HitStorage) Add(channel uint16, value uint16) {
	i, ok := s.index[channel]
	if !ok {
		i = len(s.channels)
		s.index[channel] = i
		s.channels = append(s.channels, channel)
		s.values = append(s.values, nil)
	}
	s.values[i] = append(s.values[i], value)
}

func (s *HitStorage) Clear() {
	for i := range s.values {
		s.values[i] = s.values[i][:0]
	}
}

// Values returns the values of channel in the current event. The slice is
// only valid until the next Clear.
func (s *HitStorage) Values(channel uint16) []uint16 {
	i, ok := s.index[channel]
	if !ok {
		return nil
	}
	return s.values[i]
}

// Len returns the number of channels with at least one value.
func (s *HitStorage) Len() int {
	n := 0
	for _, v := range s.values {
		if len(v) > 0 {
			n++
		}
	}
	return n
}

// All iterates over the channels in first-insertion order, including the
// channels that have no value in the current event.
func (s *HitStorage) All() iter.Seq2[uint16, []uint16] {
	return func(yield func(uint16, []uint16) bool) {
		for i, channel := range s.channels {
			if !yield(channel, s.values[i]) {
				return
			}
		}
	}
}

// ScalerBlock accumulates the scaler reads of one event. Reads are only
// appended, an index read twice keeps both values.
type ScalerBlock struct {
	reads []KeyValue[uint32]
}

func (b *ScalerBlock) Append(index uint32, value uint32) {
	b.reads = append(b.reads, KeyValue[uint32]{Key: index, Value: value})
}

func (b *ScalerBlock) Reset() {
	b.reads = b.reads[:0]
}

func (b *ScalerBlock) Empty() bool {
	return len(b.reads) == 0
}

// Reads returns the (index, value) pairs in the order they were read.
func (b *ScalerBlock) Reads() []KeyValue[uint32] {
	return b.reads
}

// Values returns the values read for index, in read order.
func (b *ScalerBlock) Values(index uint32) []uint32 {
	var values []uint32
	for _, r := range b.reads {
		if r.Key == index {
			values = append(values, r.Value)
		}
	}
	return values
}

func (u *Unpacker) fillDetectorReadHits(hits []DetectorReadHit) []DetectorReadHit {
	for channel, values := range u.hits.All() {
		if len(values) == 0 {
			continue
		}
		for _, mapping := range u.hitMappings[channel] {
			if len(mapping.RawChannels) != 1 || mapping.RawChannels[0].HasMask() {
				logger.Error(fmt.Sprintf("Not implemented: mapping of %v uses %d raw channels or a bit mask",
					mapping.LogicalChannel, len(mapping.RawChannels)))
				continue
			}
			hits = append(hits, NewDetectorReadHit(mapping.LogicalChannel, values))
		}
	}

	if len(hits) == 0 && configuration.Verbosity > 1 {
		logger.Info("Found event with no hits at all", "unpacker")
	}
	return hits
}

func (u *Unpacker) fillSlowControls(slowControls []SlowControl) []SlowControl {
	if u.scalers.Empty() {
		return slowControls
	}

	for _, scalerMapping := range u.mappings.ScalerMappings {
		sc := SlowControl{
			Type:     AcquScaler,
			Validity: Backward,
			Name:     scalerMapping.SlowControlName,
		}
		for _, entry := range scalerMapping.Entries {
			for _, value := range u.scalers.Values(entry.RawChannel) {
				sc.PayloadInt = append(sc.PayloadInt, KeyValue[int64]{Key: entry.LogicalChannel, Value: int64(value)})
			}
		}
		if configuration.Verbosity > 3 {
			logger.Info(sc.String(), "unpacker")
		}
		slowControls = append(slowControls, sc)
	}
	return slowControls
}
