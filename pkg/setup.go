package decoder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/a2mainz/acqu_decoder/pkg/detector"
)

// RawChannel refers to one hardware channel. Mask zero means the whole value is used.
type RawChannel struct {
	RawChannel uint32 `json:"raw_channel"`
	Mask       uint32 `json:"mask,omitempty"`
}

func (r RawChannel) HasMask() bool {
	return r.Mask != 0
}

// HitMapping connects raw ADC/TDC channels to one logical channel.
type HitMapping struct {
	LogicalChannel detector.LogicalChannel `json:"logical_channel"`
	RawChannels    []RawChannel            `json:"raw_channels"`
}

type ScalerEntry struct {
	LogicalChannel uint32 `json:"logical_channel"`
	RawChannel     uint32 `json:"raw_channel"`
}

// ScalerMapping groups scaler reads into one named slow control record.
type ScalerMapping struct {
	SlowControlName string        `json:"slow_control_name"`
	Entries         []ScalerEntry `json:"entries"`
}

type Mappings struct {
	HitMappings    []HitMapping    `json:"hit_mappings"`
	ScalerMappings []ScalerMapping `json:"scaler_mappings"`
}

// SetupProvider finds the channel mappings applicable to a run.
type SetupProvider interface {
	Mappings(info HeaderInfo) (Mappings, error)
}

// JSONSetup is one entry of a setup file, valid for a run range.
type JSONSetup struct {
	Name   string `json:"name"`
	MinRun int    `json:"min_run"`
	MaxRun int    `json:"max_run"`
	Mappings
}

func (s JSONSetup) Matches(info HeaderInfo) bool {
	run := int(info.RunNumber)
	return s.MinRun <= run && run <= s.MaxRun
}

type SetupList []JSONSetup

// LoadSetupFile reads the setup list from the "setups" key of a JSON file.
func LoadSetupFile(filename string) (SetupList, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	var file struct {
		Setups SetupList `json:"setups"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing setup file %s: %w", filename, err)
	}
	return file.Setups, nil
}

func (l SetupList) Mappings(info HeaderInfo) (Mappings, error) {
	for _, setup := range l {
		if setup.Matches(info) {
			if configuration.Verbosity > 0 {
				message := fmt.Sprintf("Using setup %s for run %d", setup.Name, info.RunNumber)
				logger.Info(message, "setup")
			}
			return setup.Mappings, nil
		}
	}
	return Mappings{}, fmt.Errorf("run %d: %w", info.RunNumber, ErrNoConfig)
}
