package decoder

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/a2mainz/acqu_decoder/pkg/detector"
)

// ID identifies an event: the run timestamp plus a running counter.
type ID struct {
	Timestamp int64
	Lower     uint32
}

func (id ID) String() string {
	return fmt.Sprintf("(%d,%d)", id.Timestamp, id.Lower)
}

type Event struct {
	ID               ID
	DetectorReadHits []DetectorReadHit
	SlowControls     []SlowControl
	DAQErrors        []DAQError
	UnpackerMessages []Message
}

func NewEvent(id ID) *Event {
	return &Event{ID: id}
}

// DetectorReadHit carries the raw values of one logical channel.
// RawData holds the values as little-endian uint16s.
type DetectorReadHit struct {
	LogicalChannel detector.LogicalChannel
	RawData        []byte
}

func NewDetectorReadHit(channel detector.LogicalChannel, values []uint16) DetectorReadHit {
	raw := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(raw[2*i:], v)
	}
	return DetectorReadHit{LogicalChannel: channel, RawData: raw}
}

func (h DetectorReadHit) Values() []uint16 {
	values := make([]uint16, len(h.RawData)/2)
	for i := range values {
		values[i] = binary.LittleEndian.Uint16(h.RawData[2*i:])
	}
	return values
}

type SlowControlType int

const (
	AcquScaler SlowControlType = iota
	EpicsOneShot
	EpicsScaler
	EpicsTimer
)

func (t SlowControlType) String() string {
	switch t {
	case AcquScaler:
		return "AcquScaler"
	case EpicsOneShot:
		return "EpicsOneShot"
	case EpicsScaler:
		return "EpicsScaler"
	case EpicsTimer:
		return "EpicsTimer"
	default:
		return "Unknown"
	}
}

type Validity int

const (
	Forward Validity = iota
	Backward
)

func (v Validity) String() string {
	if v == Backward {
		return "Backward"
	}
	return "Forward"
}

type KeyValue[T any] struct {
	Key   uint32
	Value T
}

type SlowControl struct {
	Type          SlowControlType
	Validity      Validity
	Timestamp     int64
	Name          string
	Description   string
	PayloadInt    []KeyValue[int64]
	PayloadFloat  []KeyValue[float64]
	PayloadString []KeyValue[string]
}

func (s SlowControl) String() string {
	return fmt.Sprintf("SlowControl %s Type=%v Validity=%v Timestamp=%d Ints=%d Floats=%d Strings=%d",
		s.Name, s.Type, s.Validity, s.Timestamp, len(s.PayloadInt), len(s.PayloadFloat), len(s.PayloadString))
}

type DAQError struct {
	ModuleID    int32
	ModuleIndex int32
	ErrorCode   int32
	ModuleName  string
}

func (e DAQError) String() string {
	return fmt.Sprintf("DAQError ModID=0x%x (%s) ModIndex=%d ErrCode=%d", e.ModuleID, e.ModuleName, e.ModuleIndex, e.ErrorCode)
}

type MessageLevel int

const (
	Info MessageLevel = iota
	Warn
	DataError
	DataDiscard
)

func (l MessageLevel) String() string {
	switch l {
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case DataError:
		return "DataError"
	case DataDiscard:
		return "DataDiscard"
	default:
		return "Unknown"
	}
}

// Message is a diagnostic produced while unpacking. Each "{}" in Text is
// replaced by the next Payload entry when formatted.
type Message struct {
	Level   MessageLevel
	Text    string
	Payload []float64
}

func (m Message) Formatted() string {
	var sb strings.Builder
	rest := m.Text
	for _, p := range m.Payload {
		i := strings.Index(rest, "{}")
		if i < 0 {
			break
		}
		sb.WriteString(rest[:i])
		sb.WriteString(fmt.Sprintf("%v", p))
		rest = rest[i+2:]
	}
	sb.WriteString(rest)
	return sb.String()
}

func (m Message) String() string {
	return fmt.Sprintf("[%v] %s", m.Level, m.Formatted())
}
