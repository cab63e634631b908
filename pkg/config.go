package decoder

import (
	"encoding/json"
	"os"
)

type Configuration struct {
	MaxEvents               int     `json:"max_events"`
	Verbosity               int     `json:"verbosity"`
	FileIn                  string  `json:"file_in"`
	FileOut                 string  `json:"file_out"`
	SetupFile               string  `json:"setup_file"`
	PlotFile                string  `json:"plot_file"`
	Skip                    int     `json:"skip"`
	NoDB                    bool    `json:"no_db"`
	DBDriver                string  `json:"db_driver"`
	Host                    string  `json:"host"`
	User                    string  `json:"user"`
	Passwd                  string  `json:"pass"`
	DBName                  string  `json:"dbname"`
	NumWorkers              int     `json:"num_workers"`
	WriteData               bool    `json:"write_data"`
	CompressionLevel        int     `json:"compression_level"`
	AllowSingleVetoClusters bool    `json:"allow_single_veto_clusters"`
	PIDPhiEpsilon           float64 `json:"pid_phi_epsilon"`
	CBClusterThreshold      float64 `json:"cb_cluster_threshold"`
	TAPSClusterThreshold    float64 `json:"taps_cluster_threshold"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func DefaultConfiguration() Configuration {
	var config Configuration
	config.MaxEvents = 1000000000
	config.Verbosity = 0
	config.Skip = 0
	config.NoDB = true
	config.DBDriver = "mysql"
	config.Host = "a2calib.kph.uni-mainz.de"
	config.User = "a2reader"
	config.Passwd = "readonly"
	config.DBName = "A2Setup"
	config.NumWorkers = 1
	config.WriteData = true
	config.CompressionLevel = 4
	config.AllowSingleVetoClusters = false
	config.PIDPhiEpsilon = 0
	config.CBClusterThreshold = 15
	config.TAPSClusterThreshold = 20
	return config
}

// LoadConfiguration reads a JSON configuration file on top of the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}
