package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// The handlers below get the position of the block marker and the end of
// the enclosing range. They return the position after the block and false
// if the block is malformed, in which case a message has been logged.

func (u *Unpacker) handleScalerBuffer(pos int, end int, errors *[]DAQError) (int, bool) {
	buf := u.buffer
	pos++ // marker

	if pos >= end {
		u.logMessage(DataError, "Acqu ScalerBlock only start marker found")
		return pos, false
	}

	scalerLength := int(int32(buf[pos]))
	if scalerLength < 0 || scalerLength%WORD_SIZE != 0 || end-pos < scalerLength/WORD_SIZE {
		u.logMessage(DataError, "Acqu ScalerBlock length invalid")
		return pos, false
	}

	endScaler := pos + scalerLength/WORD_SIZE
	if buf[endScaler] != EScalerBuffer {
		u.logMessage(DataError, fmt.Sprintf("Acqu ScalerBlock did not have proper end marker: 0x%x", buf[endScaler]))
		return pos, false
	}
	pos++ // length word

	for pos < endScaler {
		// error blocks may be interleaved with the scaler reads
		if buf[pos] == EReadError {
			var ok bool
			pos, ok = u.handleDAQError(errors, pos, endScaler)
			if !ok {
				return pos, false
			}
			continue
		}

		if endScaler-pos < 2 {
			u.logMessage(DataError, "Acqu ScalerBlock contains malformed scaler read")
			return pos, false
		}
		u.scalers.Append(buf[pos], buf[pos+1])
		pos += 2
	}

	return endScaler + 1, true
}

func (u *Unpacker) handleDAQError(errors *[]DAQError, pos int, end int) (int, bool) {
	words := READ_ERROR_SIZE / WORD_SIZE
	if end-pos < words {
		u.logMessage(DataError, "Acqu ErrorBlock not completely present in buffer")
		return pos, false
	}

	var block ReadErrorMk2
	if err := readStruct(u.buffer[pos:pos+words], &block); err != nil {
		u.logMessage(DataError, fmt.Sprintf("Acqu ErrorBlock could not be decoded: %v", err))
		return pos, false
	}
	if block.Trailer != EReadError {
		u.logMessage(DataError, "Acqu ErrorBlock does not end with expected trailer word")
		return pos, false
	}

	daqError := DAQError{
		ModuleID:    block.ModID,
		ModuleIndex: block.ModIndex,
		ErrorCode:   block.ErrCode,
		ModuleName:  moduleName(block.ModID),
	}
	*errors = append(*errors, daqError)
	if configuration.Verbosity > 1 {
		logger.Info(daqError.String(), "unpacker")
	}
	return pos + words, true
}

func (u *Unpacker) handleEPICSBuffer(slowControls *[]SlowControl, pos int, end int) (int, bool) {
	buf := u.buffer
	pos++ // marker

	headerWords := EPICS_HEADER_SIZE / WORD_SIZE
	if end-pos < headerWords {
		u.logMessage(DataError, "EPICS header not completely present in buffer")
		return pos, false
	}

	var header EpicsHeaderInfo
	if err := readStruct(buf[pos:pos+headerWords], &header); err != nil {
		u.logMessage(DataError, fmt.Sprintf("EPICS header could not be decoded: %v", err))
		return pos, false
	}

	// Len includes the EPICS header
	if header.Len%WORD_SIZE != 0 {
		u.logMessage(DataError, "EPICS data not word aligned")
		return pos, false
	}
	if header.Len < EPICS_HEADER_SIZE {
		u.logMessage(DataError, fmt.Sprintf("EPICS data length %d smaller than header", header.Len))
		return pos, false
	}
	if bytes.IndexByte(header.Name[:], 0) < 0 {
		u.logMessage(DataError, "EPICS header has malformed module name")
		return pos, false
	}
	totalWords := int(header.Len) / WORD_SIZE
	if end-pos < totalWords {
		u.logMessage(DataError, "EPICS data not completely present in buffer")
		return pos, false
	}

	// channel payloads are not word aligned
	data := wordsToBytes(buf[pos : pos+totalWords])
	b := EPICS_HEADER_SIZE

	recordType := EpicsOneShot
	validity := Forward
	description := ""
	if header.Period < 0 {
		recordType = EpicsTimer
		validity = Backward
		description = fmt.Sprintf("Period='%d ms'", -int(header.Period))
	} else if header.Period > 0 {
		recordType = EpicsScaler
		validity = Backward
		description = fmt.Sprintf("Period='%d scalers'", header.Period)
	}

	for i := 0; i < int(header.NChan); i++ {
		remaining := len(data) - b
		if remaining < EPICS_CHANNEL_SIZE {
			u.logMessage(DataError, "EPICS channel header not completely present in buffer")
			return pos, false
		}

		var channel EpicsChannelInfo
		if err := binary.Read(bytes.NewReader(data[b:b+EPICS_CHANNEL_SIZE]), binary.LittleEndian, &channel); err != nil {
			u.logMessage(DataError, fmt.Sprintf("EPICS channel header could not be decoded: %v", err))
			return pos, false
		}
		if remaining < int(channel.Bytes) {
			u.logMessage(DataError, "EPICS channel payload not completely present in buffer")
			return pos, false
		}
		chType, ok := epicsTypes[channel.Type]
		if !ok {
			u.logMessage(DataError, fmt.Sprintf("EPICS channel type %d unknown", channel.Type))
			return pos, false
		}
		nElements := int(channel.NElem)
		if nElements < 0 || int(channel.Bytes) != EPICS_CHANNEL_SIZE+nElements*chType.Size {
			u.logMessage(DataError, "EPICS channel payload size inconsistent")
			return pos, false
		}

		sc := SlowControl{
			Type:        recordType,
			Validity:    validity,
			Timestamp:   header.Time,
			Name:        cString(channel.PVName[:]),
			Description: description,
		}

		b += EPICS_CHANNEL_SIZE
		for elem := 0; elem < nElements; elem++ {
			key := uint32(elem)
			value := data[b : b+chType.Size]
			switch chType.DataType {
			case EpicsByte:
				sc.PayloadInt = append(sc.PayloadInt, KeyValue[int64]{key, int64(value[0])})
			case EpicsShort:
				v := int16(binary.LittleEndian.Uint16(value))
				sc.PayloadInt = append(sc.PayloadInt, KeyValue[int64]{key, int64(v)})
			case EpicsLong:
				v := int64(binary.LittleEndian.Uint64(value))
				sc.PayloadInt = append(sc.PayloadInt, KeyValue[int64]{key, v})
			case EpicsFloat:
				v := math.Float32frombits(binary.LittleEndian.Uint32(value))
				sc.PayloadFloat = append(sc.PayloadFloat, KeyValue[float64]{key, float64(v)})
			case EpicsDouble:
				v := math.Float64frombits(binary.LittleEndian.Uint64(value))
				sc.PayloadFloat = append(sc.PayloadFloat, KeyValue[float64]{key, v})
			case EpicsString:
				n := bytes.IndexByte(value, 0)
				if n < 0 {
					u.logMessage(DataError, "EPICS channel string data too long (no terminating \\0?)")
					return pos, false
				}
				sc.PayloadString = append(sc.PayloadString, KeyValue[string]{key, string(value[:n])})
			}
			b += chType.Size
		}

		if configuration.Verbosity > 3 {
			logger.Info(sc.String(), "unpacker")
		}
		*slowControls = append(*slowControls, sc)
	}

	if configuration.Verbosity > 3 {
		logger.Info("Successfully parsed EPICS buffer", "unpacker")
	}
	return pos + totalWords, true
}

// cString returns the bytes before the first NUL, or all of them.
func cString(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return string(raw[:i])
	}
	return string(raw)
}
