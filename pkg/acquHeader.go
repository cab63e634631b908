package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const ACQU_TIME_LAYOUT = "Mon Jan _2 15:04:05 2006"

type HardwareModule struct {
	Identifier      string
	Index           int32
	Bits            int32
	FirstRawChannel int32
	NRawChannels    int32
}

type HeaderInfo struct {
	Time          time.Time // wall clock as written, in UTC
	Description   string
	RunNote       string
	OutFile       string
	RunNumber     uint32
	RecordLength  uint32
	ADCModules    []HardwareModule
	ScalerModules []HardwareModule
}

func (h HeaderInfo) String() string {
	return fmt.Sprintf("Acqu Header Info: Time='%s' Description='%s' RunNote='%s' OutFile='%s' RunNumber=%d RecordLength=%d nModules=%d",
		h.Time.Format("2006-01-02T15:04:05"), h.Description, h.RunNote, h.OutFile,
		h.RunNumber, h.RecordLength, len(h.ADCModules)+len(h.ScalerModules))
}

// sizeOfHeaderWords is the number of words needed to inspect the header
func sizeOfHeaderWords() int {
	return MK2_INFO_SIZE/WORD_SIZE + 1
}

func inspectHeader(buffer []uint32) bool {
	return len(buffer) >= 2 && buffer[0] == EHeadBuff && buffer[1] == EHeadBuff
}

func wordsToBytes(words []uint32) []byte {
	data := make([]byte, WORD_SIZE*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[WORD_SIZE*i:], w)
	}
	return data
}

func readStruct(words []uint32, data any) error {
	return binary.Read(bytes.NewReader(wordsToBytes(words)), binary.LittleEndian, data)
}

// sanitizeString cuts a fixed size C string at the first NUL and strips
// whitespace and non-printable characters.
func sanitizeString(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, string(raw))
	return strings.TrimSpace(s)
}

// fillInfo decodes the Mk2 header record. The buffer is expanded to
// include the module table.
func fillInfo(reader *RawFileReader, buffer *[]uint32) (HeaderInfo, error) {
	info := HeaderInfo{}
	infoWords := 1 + MK2_INFO_SIZE/WORD_SIZE
	if len(*buffer) < infoWords {
		return info, fmt.Errorf("header buffer too short: %d words", len(*buffer))
	}

	var h Mk2Info
	if err := readStruct((*buffer)[1:infoWords], &h); err != nil {
		return info, fmt.Errorf("error decoding Mk2 header: %w", err)
	}

	timeText := sanitizeString(h.Time[:])
	t, err := time.Parse(ACQU_TIME_LAYOUT, timeText)
	if err != nil {
		return info, fmt.Errorf("error parsing header time %q: %w", timeText, err)
	}
	info.Time = t
	info.Description = sanitizeString(h.Description[:])
	info.RunNote = sanitizeString(h.RunNote[:])
	info.OutFile = sanitizeString(h.OutFile[:])
	info.RunNumber = uint32(h.Run)
	info.RecordLength = uint32(h.RecLen)

	if h.NModule < 0 {
		return info, fmt.Errorf("header has negative number of modules %d", h.NModule)
	}
	nModules := int(h.NModule)
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Header says: Have %d modules", nModules)
		logger.Info(message, "header")
	}

	moduleWords := MK2_MODULE_SIZE / WORD_SIZE
	totalSize := infoWords + nModules*moduleWords
	if err := reader.ExpandBuffer(buffer, totalSize); err != nil {
		return info, fmt.Errorf("error reading module table: %w", err)
	}

	totalADCs := 0
	totalScalers := 0
	for i := 0; i < nModules; i++ {
		start := infoWords + i*moduleWords
		var m ModuleInfoMk2
		if err := readStruct((*buffer)[start:start+moduleWords], &m); err != nil {
			return info, fmt.Errorf("error decoding module %d: %w", i, err)
		}
		name, ok := ModuleIDToString[m.ModID]
		if !ok {
			logger.Error(fmt.Sprintf("Skipping unknown module with ID=0x%x", m.ModID))
			continue
		}
		module := HardwareModule{
			Identifier:      name,
			Index:           m.ModIndex,
			Bits:            m.Bits,
			FirstRawChannel: m.Amin,
		}
		// ADC and scaler capable modules appear in both lists
		if uint32(m.ModType)&EDAQ_ADC != 0 {
			totalADCs += int(m.NChannel)
			module.NRawChannels = m.NChannel
			info.ADCModules = append(info.ADCModules, module)
		}
		if uint32(m.ModType)&EDAQ_Scaler != 0 {
			totalScalers += int(m.NScChannel)
			module.NRawChannels = m.NScChannel
			info.ScalerModules = append(info.ScalerModules, module)
		}
	}
	if configuration.Verbosity > 2 {
		logger.Info(fmt.Sprintf("Header says: Have %d ADC modules with %d channels", len(info.ADCModules), totalADCs), "header")
		logger.Info(fmt.Sprintf("Header says: Have %d Scaler modules with %d channels", len(info.ScalerModules), totalScalers), "header")
	}
	return info, nil
}

// Runs recorded during the summer->winter time transition, where the
// wall clock in the header is ambiguous.
var manualDSTs = []struct {
	Year      int
	RunNumber uint32
	DST       bool
}{
	{2014, 6592, true},
	{2014, 6593, true},
	{2014, 6594, false},
	{2014, 6596, false},
}

// RunTimestamp converts the header wall clock, written in Central European
// local time, to a unix timestamp.
func RunTimestamp(info HeaderInfo) (int64, error) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return 0, fmt.Errorf("error loading time zone: %w", err)
	}
	w := info.Time
	wallUTC := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, time.UTC)

	_, offsetBefore := wallUTC.Add(-6 * time.Hour).In(loc).Zone()
	_, offsetAfter := wallUTC.Add(6 * time.Hour).In(loc).Zone()

	type candidate struct {
		t      time.Time
		offset int
	}
	candidates := make([]candidate, 0, 2)
	for _, offset := range []int{offsetBefore, offsetAfter} {
		t := wallUTC.Add(-time.Duration(offset) * time.Second)
		local := t.In(loc)
		if local.Hour() == w.Hour() && local.Minute() == w.Minute() && local.Day() == w.Day() {
			if len(candidates) == 0 || candidates[0].t != t {
				candidates = append(candidates, candidate{t, offset})
			}
		}
	}

	switch len(candidates) {
	case 0:
		// wall clock inside the spring gap, let the time package normalize it
		return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, loc).Unix(), nil
	case 1:
		return candidates[0].t.Unix(), nil
	}

	for _, item := range manualDSTs {
		if item.Year != w.Year() || item.RunNumber != info.RunNumber {
			continue
		}
		dst := candidates[0]
		std := candidates[1]
		if dst.offset < std.offset {
			dst, std = std, dst
		}
		if item.DST {
			return dst.t.Unix(), nil
		}
		return std.t.Unix(), nil
	}
	return 0, fmt.Errorf("run %d at %s has unknown DST flag (not found in database)",
		info.RunNumber, w.Format("2006-01-02T15:04:05"))
}
