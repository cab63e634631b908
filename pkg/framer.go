package decoder

import (
	"fmt"
)

// unpackDataBuffer splits the current buffer into events. The events are
// only valid if it returns true.
func (u *Unpacker) unpackDataBuffer(queue *[]*Event) bool {
	buf := u.buffer
	bufferSizeBytes := WORD_SIZE * len(buf)

	if buf[0] != EMk2DataBuff {
		u.logMessage(DataError, fmt.Sprintf("Buffer starts with unexpected header word 0x%x", buf[0]))
		return false
	}
	pos := 1

	nEventsInBuffer := 0
	for pos < len(buf) && buf[pos] != EBufferEnd {
		acquID := buf[pos]
		if u.lastAcquID > acquID && configuration.Verbosity > 2 {
			logger.Info(fmt.Sprintf("Overflow of Acqu EventId detected from %d to %d", u.lastAcquID, acquID), "unpacker")
		}
		u.lastAcquID = acquID
		pos++

		if pos >= len(buf) {
			break
		}
		event, next, ok := u.unpackEvent(pos)
		if !ok {
			return false
		}
		u.appendMessagesToEvent(event)
		*queue = append(*queue, event)
		nEventsInBuffer++
		pos = next
	}

	if pos >= len(buf) {
		// EEndEvent == EBufferEnd, so a buffer filled up to its last word
		// has no separate end marker
		if len(buf) > 1 && pos == len(buf) && buf[len(buf)-1] == EEndEvent && nEventsInBuffer > 0 {
			u.logMessage(Info, fmt.Sprintf("Buffer was exactly filled with %d events, no buffer endmarker present",
				nEventsInBuffer))
			return true
		}

		last1, last2 := buf[len(buf)-1], uint32(0)
		if len(buf) > 1 {
			last2 = buf[len(buf)-2]
		}
		u.logMessage(DataError, fmt.Sprintf("Buffer did not have proper end buffer marker:  1. lastword=0x%08x, 2. lastword=0x%08x, buffersize_bytes=0x%x",
			last1, last2, bufferSizeBytes))
		return false
	}
	return true
}

// unpackEvent decodes the event whose length word is at pos and returns the
// position of the word after its end marker.
func (u *Unpacker) unpackEvent(pos int) (*Event, int, bool) {
	buf := u.buffer

	eventLength := int(buf[pos] / WORD_SIZE)
	endEvent := pos + eventLength
	if endEvent >= len(buf) {
		u.logMessage(DataError, fmt.Sprintf("Event with size 0x%x too big to fit in buffer of remaining size %d",
			eventLength, len(buf)-pos))
		return nil, pos, false
	}
	if buf[endEvent] != EEndEvent {
		u.logMessage(DataError, fmt.Sprintf("At designated end of event, found unexpected word 0x%x", buf[endEvent]))
		return nil, pos, false
	}
	pos++

	event := NewEvent(u.nextID())
	u.hits.Clear()
	u.scalers.Reset()

	for pos < endEvent {
		ok := false
		switch buf[pos] {
		case EEndEvent:
			u.logMessage(DataError, fmt.Sprintf("Found end of event marker at word %d before designated end %d", pos, endEvent))
		case EEPICSBuffer:
			pos, ok = u.handleEPICSBuffer(&event.SlowControls, pos, endEvent)
		case EScalerBuffer:
			pos, ok = u.handleScalerBuffer(pos, endEvent, &event.DAQErrors)
		case EReadError:
			pos, ok = u.handleDAQError(&event.DAQErrors, pos, endEvent)
		default:
			// hits have no marker: low half channel, high half value
			word := buf[pos]
			u.hits.Add(uint16(word&0xffff), uint16(word>>16))
			ok = true
			pos++
		}
		if !ok {
			return nil, pos, false
		}
	}

	event.DetectorReadHits = u.fillDetectorReadHits(event.DetectorReadHits)
	event.SlowControls = u.fillSlowControls(event.SlowControls)

	return event, endEvent + 1, true
}
