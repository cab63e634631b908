package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Stats counts what happened while unpacking a file.
type Stats struct {
	Buffers          int
	Events           int
	DiscardedBuffers int
	DiscardedEvents  int
	Messages         map[MessageLevel]int
}

// Unpacker turns an Acqu Mk2 file into a stream of events. It is not safe
// for concurrent use.
type Unpacker struct {
	reader           *RawFileReader
	info             HeaderInfo
	mappings         Mappings
	hitMappings      map[uint16][]*HitMapping
	buffer           []uint32
	trueRecordLength int
	queue            []*Event
	messages         []Message
	id               ID
	lastAcquID       uint32
	unpackedBuffers  int
	hits             *HitStorage
	scalers          ScalerBlock
	finished         bool
	stats            Stats
}

// OpenUnpacker opens filename, reads the header, looks up the mappings for
// the run and locates the first data buffer.
func OpenUnpacker(filename string, setup SetupProvider) (*Unpacker, error) {
	reader, err := OpenRawFile(filename)
	if err != nil {
		return nil, err
	}
	unpacker, err := NewUnpacker(reader, setup)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return unpacker, nil
}

func NewUnpacker(reader *RawFileReader, setup SetupProvider) (*Unpacker, error) {
	u := &Unpacker{
		reader: reader,
		hits:   NewHitStorage(),
		stats:  Stats{Messages: make(map[MessageLevel]int)},
	}

	if err := reader.ExpandBuffer(&u.buffer, sizeOfHeaderWords()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFileFormat, err)
	}
	if !inspectHeader(u.buffer) {
		return nil, ErrNoFileFormat
	}

	info, err := fillInfo(reader, &u.buffer)
	if err != nil {
		return nil, err
	}
	u.info = info
	if configuration.Verbosity > 0 {
		logger.Info(info.String(), "unpacker")
	}

	timestamp, err := RunTimestamp(info)
	if err != nil {
		return nil, err
	}
	u.id = ID{Timestamp: timestamp}

	if setup == nil {
		return nil, ErrNoConfig
	}
	mappings, err := setup.Mappings(info)
	if err != nil {
		return nil, err
	}
	u.setMappings(mappings)

	if err := u.fillFirstDataBuffer(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Unpacker) setMappings(mappings Mappings) {
	u.mappings = mappings
	u.hitMappings = make(map[uint16][]*HitMapping)
	for i := range u.mappings.HitMappings {
		mapping := &u.mappings.HitMappings[i]
		for _, raw := range mapping.RawChannels {
			if raw.RawChannel > 0xffff {
				logger.Error(fmt.Sprintf("Raw channel %d of %v out of range", raw.RawChannel, mapping.LogicalChannel))
				continue
			}
			channel := uint16(raw.RawChannel)
			u.hitMappings[channel] = append(u.hitMappings[channel], mapping)
		}
	}
}

func (u *Unpacker) fillFirstDataBuffer() error {
	for _, offset := range firstBufferOffsets {
		found, err := u.searchFirstDataBuffer(offset)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return ErrNoFirstDataBuffer
}

// searchFirstDataBuffer assumes the header record is offset bytes long.
// The buffer holds the file from its beginning.
func (u *Unpacker) searchFirstDataBuffer(offset int) (bool, error) {
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Searching first Mk2 buffer at offset 0x%x", offset), "unpacker")
	}
	nWords := offset / WORD_SIZE
	if err := u.reader.ExpandBuffer(&u.buffer, nWords); err != nil {
		return false, fmt.Errorf("%w: file shorter than header record of 0x%x bytes: %w", ErrNoFirstDataBuffer, offset, err)
	}
	if err := u.reader.ExpandBuffer(&u.buffer, nWords+1); err != nil {
		if u.reader.EOF() {
			logger.Info(fmt.Sprintf("Warning: file is exactly %d bytes long, and contains only header.", offset), "unpacker")
			u.buffer = u.buffer[:0]
			u.trueRecordLength = nWords
			return true, nil
		}
		return false, err
	}

	if u.buffer[nWords] != EMk2DataBuff {
		return false, nil
	}

	if int(u.info.RecordLength) != offset {
		u.logMessage(Warn, fmt.Sprintf("Record length in header 0x%x does not match true file record length 0x%x",
			u.info.RecordLength, offset))
	}
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Found first Mk2 buffer at offset 0x%x", offset), "unpacker")
	}

	u.buffer[0] = u.buffer[nWords]
	u.buffer = u.buffer[:nWords]
	if _, err := u.reader.Read(u.buffer[1:]); err != nil {
		return false, fmt.Errorf("%w: only %d bytes read from file, but %d required: %w",
			ErrShortFirstBuffer, u.reader.GCount(), WORD_SIZE*(nWords-1), err)
	}
	u.trueRecordLength = nWords
	return true, nil
}

func (u *Unpacker) logMessage(level MessageLevel, text string, payload ...float64) {
	message := Message{Level: level, Text: text, Payload: payload}
	u.messages = append(u.messages, message)
	u.stats.Messages[level]++

	threshold := 1
	switch level {
	case Info:
		threshold = 3
	case Warn:
		threshold = 2
	}
	if configuration.Verbosity >= threshold {
		logger.Info(fmt.Sprintf("Buffer n=%d [UnpackerMessage] %v", u.unpackedBuffers, message), "unpacker")
	}
}

func (u *Unpacker) appendMessagesToEvent(event *Event) {
	event.UnpackerMessages = append(event.UnpackerMessages, u.messages...)
	u.messages = u.messages[:0]
}

func (u *Unpacker) nextID() ID {
	id := u.id
	u.id.Lower++
	return id
}

// FillEvents unpacks the current buffer into the queue and reads the next
// one. Problems with the data never stop the unpacking: they become
// messages attached to the emitted events.
func (u *Unpacker) FillEvents() {
	if len(u.buffer) == 0 {
		u.finished = true
		// header-only files still give one event
		if len(u.messages) > 0 || u.unpackedBuffers == 0 {
			event := NewEvent(u.nextID())
			u.appendMessagesToEvent(event)
			u.queue = append(u.queue, event)
		}
		return
	}

	var pending []*Event
	if !u.unpackDataBuffer(&pending) {
		logger.Error(fmt.Sprintf("Error while unpacking buffer n=%d, discarding all unpacked data from buffer.",
			u.unpackedBuffers))

		// messages of the discarded events are not lost
		var gathered []Message
		for _, event := range pending {
			gathered = append(gathered, event.UnpackerMessages...)
		}
		u.messages = append(gathered, u.messages...)

		digest := xxhash.Sum64(wordsToBytes(u.buffer))
		u.logMessage(DataDiscard, fmt.Sprintf("Discarded buffer number {} with {} events (digest %016x)", digest),
			float64(u.unpackedBuffers), float64(len(pending)))
		u.stats.DiscardedBuffers++
		u.stats.DiscardedEvents += len(pending)

		event := NewEvent(u.nextID())
		u.appendMessagesToEvent(event)
		u.queue = append(u.queue, event)
	} else {
		u.queue = append(u.queue, pending...)
		u.stats.Events += len(pending)
	}
	u.unpackedBuffers++
	u.stats.Buffers++

	u.buffer = u.buffer[:u.trueRecordLength]
	if _, err := u.reader.Read(u.buffer); err != nil {
		if u.reader.GCount() == 0 && u.reader.EOF() {
			u.logMessage(Info, "Found proper end of file")
		} else if !u.reader.EOF() {
			u.logMessage(DataError, fmt.Sprintf("Error while reading input: %v", err))
		} else {
			u.logMessage(DataError, fmt.Sprintf("Read only %d bytes, not enough for record length %d",
				u.reader.GCount(), WORD_SIZE*u.trueRecordLength))
		}
		u.buffer = u.buffer[:0]
	}

	// avoid events carrying only messages
	if len(u.queue) > 0 {
		u.appendMessagesToEvent(u.queue[len(u.queue)-1])
	}
}

// NextEvent returns the events in file order and io.EOF after the last one.
func (u *Unpacker) NextEvent() (*Event, error) {
	for len(u.queue) == 0 {
		if u.finished {
			return nil, io.EOF
		}
		u.FillEvents()
	}
	event := u.queue[0]
	u.queue[0] = nil
	u.queue = u.queue[1:]
	return event, nil
}

// Skip drops the next n events.
func (u *Unpacker) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := u.NextEvent(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (u *Unpacker) Header() HeaderInfo {
	return u.info
}

func (u *Unpacker) Stats() Stats {
	return u.stats
}

func (u *Unpacker) PercentDone() float64 {
	return u.reader.PercentDone()
}

func (u *Unpacker) Close() error {
	return u.reader.Close()
}
