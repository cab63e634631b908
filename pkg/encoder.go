package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// EpicsChannel is one process variable of an EPICS block. Only the payload
// slice matching Type is written.
type EpicsChannel struct {
	Name    string
	Type    int16
	Ints    []int64
	Floats  []float64
	Strings []string
}

func (c EpicsChannel) nElements() int {
	switch epicsTypes[c.Type].DataType {
	case EpicsByte, EpicsShort, EpicsLong:
		return len(c.Ints)
	case EpicsFloat, EpicsDouble:
		return len(c.Floats)
	default:
		return len(c.Strings)
	}
}

type EpicsBlock struct {
	Name     string
	Time     int64
	Index    int16
	Period   int16
	ID       int16
	Channels []EpicsChannel
}

// RawEvent collects the payload words of one event before encoding.
type RawEvent struct {
	words []uint32
}

func (r *RawEvent) AddHit(channel uint16, value uint16) {
	r.words = append(r.words, uint32(value)<<16|uint32(channel))
}

// AddWords appends words as they are, without any framing.
func (r *RawEvent) AddWords(words ...uint32) {
	r.words = append(r.words, words...)
}

// AddScalerBlock writes a scaler block. Error blocks, if any, are written
// inside the block before the reads.
func (r *RawEvent) AddScalerBlock(reads []KeyValue[uint32], daqErrors ...DAQError) {
	lengthWords := 1 + 2*len(reads) + len(daqErrors)*READ_ERROR_SIZE/WORD_SIZE
	r.words = append(r.words, EScalerBuffer, uint32(WORD_SIZE*lengthWords))
	for _, e := range daqErrors {
		r.AddReadError(e)
	}
	for _, read := range reads {
		r.words = append(r.words, read.Key, read.Value)
	}
	r.words = append(r.words, EScalerBuffer)
}

func (r *RawEvent) AddReadError(e DAQError) {
	r.words = append(r.words, EReadError, uint32(e.ModuleID), uint32(e.ModuleIndex), uint32(e.ErrorCode), EReadError)
}

func (r *RawEvent) AddEPICSBlock(block EpicsBlock) error {
	var payload bytes.Buffer
	for _, channel := range block.Channels {
		chType, ok := epicsTypes[channel.Type]
		if !ok {
			return fmt.Errorf("unknown EPICS type %d", channel.Type)
		}
		n := channel.nElements()
		info := EpicsChannelInfo{
			Bytes: int16(EPICS_CHANNEL_SIZE + n*chType.Size),
			NElem: int16(n),
			Type:  channel.Type,
		}
		copy(info.PVName[:EPICS_NAME_SIZE-1], channel.Name)
		binary.Write(&payload, binary.LittleEndian, info)

		for i := 0; i < n; i++ {
			switch chType.DataType {
			case EpicsByte:
				payload.WriteByte(byte(channel.Ints[i]))
			case EpicsShort:
				binary.Write(&payload, binary.LittleEndian, int16(channel.Ints[i]))
			case EpicsLong:
				binary.Write(&payload, binary.LittleEndian, channel.Ints[i])
			case EpicsFloat:
				binary.Write(&payload, binary.LittleEndian, math.Float32bits(float32(channel.Floats[i])))
			case EpicsDouble:
				binary.Write(&payload, binary.LittleEndian, math.Float64bits(channel.Floats[i]))
			case EpicsString:
				var s [40]byte
				copy(s[:39], channel.Strings[i])
				payload.Write(s[:])
			}
		}
	}

	total := EPICS_HEADER_SIZE + payload.Len()
	if rest := total % WORD_SIZE; rest != 0 {
		payload.Write(make([]byte, WORD_SIZE-rest))
		total += WORD_SIZE - rest
	}
	header := EpicsHeaderInfo{
		Time:   block.Time,
		Index:  block.Index,
		Period: block.Period,
		ID:     block.ID,
		NChan:  int16(len(block.Channels)),
		Len:    int32(total),
	}
	copy(header.Name[:EPICS_NAME_SIZE-1], block.Name)

	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, header)
	data.Write(payload.Bytes())

	raw := data.Bytes()
	r.words = append(r.words, EEPICSBuffer)
	for i := 0; i < len(raw); i += WORD_SIZE {
		r.words = append(r.words, binary.LittleEndian.Uint32(raw[i:]))
	}
	return nil
}

// Mk2Encoder writes Acqu Mk2 files. Events are packed into data buffers of
// the record length, a buffer is written once the next event does not fit.
type Mk2Encoder struct {
	w            io.Writer
	recordLength int
	buffer       []uint32
	acquID       uint32
	Buffers      int
}

var ErrEventTooLarge = errors.New("event does not fit into one data buffer")

// NewMk2Encoder uses recordLength bytes for the header record and every
// data buffer. Only 0x8000 and 10*0x8000 are found by the Unpacker.
func NewMk2Encoder(w io.Writer, recordLength int) *Mk2Encoder {
	return &Mk2Encoder{w: w, recordLength: recordLength}
}

func (e *Mk2Encoder) recordWords() int {
	return e.recordLength / WORD_SIZE
}

func (e *Mk2Encoder) writeWords(words []uint32) error {
	return binary.Write(e.w, binary.LittleEndian, words)
}

// WriteHeader writes the header record. A zero info.RecordLength is replaced
// by the record length of the encoder.
func (e *Mk2Encoder) WriteHeader(info HeaderInfo, modules []ModuleInfoMk2) error {
	h := Mk2Info{
		Mk2:     EHeadBuff,
		Run:     int32(info.RunNumber),
		NModule: int32(len(modules)),
		RecLen:  int32(info.RecordLength),
	}
	if h.RecLen == 0 {
		h.RecLen = int32(e.recordLength)
	}
	copy(h.Time[:], info.Time.Format(ACQU_TIME_LAYOUT)+"\n")
	copy(h.Description[:len(h.Description)-1], info.Description)
	copy(h.RunNote[:len(h.RunNote)-1], info.RunNote)
	copy(h.OutFile[:len(h.OutFile)-1], info.OutFile)
	for _, m := range modules {
		if uint32(m.ModType)&EDAQ_ADC != 0 {
			h.NADCModule++
			h.NADC += m.NChannel
		}
		if uint32(m.ModType)&EDAQ_Scaler != 0 {
			h.NScalerModule++
			h.NScaler += m.NScChannel
		}
	}

	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, EHeadBuff)
	binary.Write(&data, binary.LittleEndian, h)
	for _, m := range modules {
		binary.Write(&data, binary.LittleEndian, m)
	}
	if data.Len() > e.recordLength {
		return fmt.Errorf("header of %d bytes larger than record length %d", data.Len(), e.recordLength)
	}
	data.Write(make([]byte, e.recordLength-data.Len()))
	_, err := e.w.Write(data.Bytes())
	return err
}

// WriteEvent frames the event with its ID, length and end marker and adds
// it to the current data buffer.
func (e *Mk2Encoder) WriteEvent(event *RawEvent) error {
	needed := 3 + len(event.words)
	if needed > e.recordWords()-1 {
		return fmt.Errorf("%w: %d words", ErrEventTooLarge, needed)
	}
	if len(e.buffer) == 0 {
		e.buffer = append(e.buffer, EMk2DataBuff)
	}
	remaining := e.recordWords() - len(e.buffer)
	if needed > remaining {
		if err := e.Flush(); err != nil {
			return err
		}
		e.buffer = append(e.buffer, EMk2DataBuff)
		remaining = e.recordWords() - len(e.buffer)
	}

	e.buffer = append(e.buffer, e.acquID, uint32(WORD_SIZE*(1+len(event.words))))
	e.buffer = append(e.buffer, event.words...)
	e.buffer = append(e.buffer, EEndEvent)
	e.acquID++

	// exactly filled buffers carry no end marker
	if needed == remaining {
		return e.Flush()
	}
	return nil
}

// Flush ends the current data buffer and writes it.
func (e *Mk2Encoder) Flush() error {
	if len(e.buffer) == 0 {
		return nil
	}
	if len(e.buffer) < e.recordWords() {
		e.buffer = append(e.buffer, EBufferEnd)
	}
	record := make([]uint32, e.recordWords())
	copy(record, e.buffer)
	e.buffer = e.buffer[:0]
	e.Buffers++
	return e.writeWords(record)
}

// WriteRawBuffer writes words as one data buffer, padded with zeros.
func (e *Mk2Encoder) WriteRawBuffer(words []uint32) error {
	if err := e.Flush(); err != nil {
		return err
	}
	record := make([]uint32, e.recordWords())
	copy(record, words)
	e.Buffers++
	return e.writeWords(record)
}

// SetAcquID sets the sequence ID of the next event.
func (e *Mk2Encoder) SetAcquID(id uint32) {
	e.acquID = id
}

func (e *Mk2Encoder) Close() error {
	return e.Flush()
}
