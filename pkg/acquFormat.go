package decoder

// Marker words of the Acqu Mk2 file format
const (
	EHeadBuff     uint32 = 0x10101010
	EMk2DataBuff  uint32 = 0x70717071
	EBufferEnd    uint32 = 0xFFFFFFFF
	EEndEvent     uint32 = 0xFFFFFFFF // same value as EBufferEnd
	EScalerBuffer uint32 = 0xFEFEFEFE
	EEPICSBuffer  uint32 = 0xFDFDFDFD
	EReadError    uint32 = 0xEFEFEFEF
)

const WORD_SIZE = 4

// Header record offsets tried when searching for the first data buffer
var firstBufferOffsets = []int{0x8000, 10 * 0x8000}

// Hardware module type bits
const (
	EDAQ_ADC    uint32 = 0x1
	EDAQ_Scaler uint32 = 0x2
)

// Sizes of the fixed records, in bytes
const (
	MK2_INFO_SIZE      = 456
	MK2_MODULE_SIZE    = 28
	READ_ERROR_SIZE    = 20
	EPICS_HEADER_SIZE  = 56
	EPICS_CHANNEL_SIZE = 38
	EPICS_NAME_SIZE    = 32
)

// Mk2Info is the run header following the EHeadBuff word.
type Mk2Info struct {
	Mk2           uint32
	Time          [32]byte
	Description   [132]byte
	RunNote       [132]byte
	OutFile       [128]byte
	Run           int32
	NModule       int32
	NADCModule    int32
	NScalerModule int32
	NADC          int32
	NScaler       int32
	RecLen        int32
}

// ModuleInfoMk2 describes one hardware module in the header record.
type ModuleInfoMk2 struct {
	ModID      int32
	ModIndex   int32
	ModType    int32
	Amin       int32
	NChannel   int32
	NScChannel int32
	Bits       int32
}

// ReadErrorMk2 is the fixed size hardware error block.
type ReadErrorMk2 struct {
	Header   uint32
	ModID    int32
	ModIndex int32
	ErrCode  int32
	Trailer  uint32
}

// EpicsHeaderInfo starts every EPICS block, right after the marker word.
// Len counts the bytes of the whole EPICS block including this header.
type EpicsHeaderInfo struct {
	Name   [EPICS_NAME_SIZE]byte
	Time   int64
	Index  int16
	Period int16
	ID     int16
	NChan  int16
	Len    int32
	Spare  int32
}

// EpicsChannelInfo precedes the payload of each EPICS channel.
// Bytes counts this header plus the payload.
type EpicsChannelInfo struct {
	PVName [EPICS_NAME_SIZE]byte
	Bytes  int16
	NElem  int16
	Type   int16
}

type EpicsDataType int

const (
	EpicsByte EpicsDataType = iota
	EpicsShort
	EpicsLong
	EpicsFloat
	EpicsDouble
	EpicsString
)

type epicsType struct {
	DataType EpicsDataType
	Size     int
}

// EPICS type code -> decoded type and element size in bytes
var epicsTypes = map[int16]epicsType{
	0: {EpicsString, 40},
	1: {EpicsShort, 2},
	2: {EpicsFloat, 4},
	4: {EpicsByte, 1},
	5: {EpicsLong, 8},
	6: {EpicsDouble, 8},
}

// Hardware module identifiers as written by Acqu
const (
	ECAEN_V792   int32 = 0x2001
	ECAEN_V775   int32 = 0x2002
	ECAEN_V874   int32 = 0x2003
	ECAEN_V1190  int32 = 0x2004
	ECAEN_V560   int32 = 0x2005
	EGSI_4800    int32 = 0x3001
	ELRS_2228    int32 = 0x3002
	ELRS_2249    int32 = 0x3003
	ELRS_1800    int32 = 0x3004
	ELRS_1821    int32 = 0x3005
	ESIS_3820    int32 = 0x4001
	EVUPROM      int32 = 0x5001
	EVITEC_VPCI  int32 = 0x5002
	ETAPS_Module int32 = 0x6001
	EIPS_V1      int32 = 0x7001
	ENonExistent int32 = 0x0
)

// ModuleIDToString resolves module identifiers. It is never modified at runtime.
var ModuleIDToString = map[int32]string{
	ECAEN_V792:   "CAEN_V792",
	ECAEN_V775:   "CAEN_V775",
	ECAEN_V874:   "CAEN_V874",
	ECAEN_V1190:  "CAEN_V1190",
	ECAEN_V560:   "CAEN_V560",
	EGSI_4800:    "GSI_4800",
	ELRS_2228:    "LRS_2228",
	ELRS_2249:    "LRS_2249",
	ELRS_1800:    "LRS_1800",
	ELRS_1821:    "LRS_1821",
	ESIS_3820:    "SIS_3820",
	EVUPROM:      "VUPROM",
	EVITEC_VPCI:  "VITEC_VPCI",
	ETAPS_Module: "TAPS_Module",
	EIPS_V1:      "IPS_V1",
}

func moduleName(id int32) string {
	if name, ok := ModuleIDToString[id]; ok {
		return name
	}
	return "UNKNOWN"
}
