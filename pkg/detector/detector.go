package detector

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is a single detector bit. Candidates combine several of them
// into a mask, e.g. CB|PID.
type Type uint32

const (
	Trigger Type = 1 << iota
	Tagger
	EPT
	CB
	PID
	MWPC0
	MWPC1
	TAPS
	TAPSVeto
	Cherenkov
	Moeller
)

// All lists the known detector types in ascending order.
var All = []Type{Trigger, Tagger, EPT, CB, PID, MWPC0, MWPC1, TAPS, TAPSVeto, Cherenkov, Moeller}

var typeNames = map[Type]string{
	Trigger:   "Trigger",
	Tagger:    "Tagger",
	EPT:       "EPT",
	CB:        "CB",
	PID:       "PID",
	MWPC0:     "MWPC0",
	MWPC1:     "MWPC1",
	TAPS:      "TAPS",
	TAPSVeto:  "TAPSVeto",
	Cherenkov: "Cherenkov",
	Moeller:   "Moeller",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t == 0 {
		return "None"
	}
	parts := make([]string, 0, 2)
	for _, single := range All {
		if t&single != 0 {
			parts = append(parts, typeNames[single])
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, "|")
}

// Contains reports whether all bits of other are set in t.
func (t Type) Contains(other Type) bool {
	return t&other == other
}

// ParseType accepts a single detector name or a "|" separated list.
func ParseType(s string) (Type, error) {
	var t Type
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for single, name := range typeNames {
			if strings.EqualFold(name, part) {
				t |= single
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown detector type %q", part)
		}
	}
	return t, nil
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ChannelType tags what a raw value of a logical channel measures.
type ChannelType int

const (
	Time ChannelType = iota
	Integral
	IntegralShort
	BitPattern
	Scaler
	Counter
)

var channelTypeStrings = []string{
	"Time",
	"Integral",
	"IntegralShort",
	"BitPattern",
	"Scaler",
	"Counter",
}

func (c ChannelType) String() string {
	if c < Time || int(c) >= len(channelTypeStrings) {
		return "UNKNOWN"
	}
	return channelTypeStrings[c]
}

func ParseChannelType(s string) (ChannelType, error) {
	for i, v := range channelTypeStrings {
		if strings.EqualFold(v, s) {
			return ChannelType(i), nil
		}
	}
	return 0, fmt.Errorf("invalid channel type: %s", s)
}

func (c ChannelType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChannelType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChannelType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LogicalChannel identifies one readout quantity of one detector element.
type LogicalChannel struct {
	Detector    Type        `json:"detector"`
	ChannelType ChannelType `json:"channel_type"`
	Element     uint        `json:"element"`
}

func (l LogicalChannel) String() string {
	return fmt.Sprintf("%v/%v/%d", l.Detector, l.ChannelType, l.Element)
}
