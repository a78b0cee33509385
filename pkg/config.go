package hittuning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Verbosity int    `json:"verbosity" yaml:"verbosity"`
	Tag       string `json:"tag" yaml:"tag"`
	MC        bool   `json:"mc" yaml:"mc"`
	Debug     bool   `json:"debug" yaml:"debug"`

	OutputDir string `json:"output_dir" yaml:"output_dir"`
	InputFile string `json:"input_file" yaml:"input_file"`
	GridFile  string `json:"grid_file" yaml:"grid_file"`

	LarBinary    string   `json:"lar_binary" yaml:"lar_binary"`
	LarEvents    int      `json:"lar_events" yaml:"lar_events"`
	AnaFile      string   `json:"ana_file" yaml:"ana_file"`
	TreeName     string   `json:"tree_name" yaml:"tree_name"`
	FCLAnalyzers []string `json:"fcl_analyzers" yaml:"fcl_analyzers"`

	MaxEvents  int `json:"max_events" yaml:"max_events"`
	Skip       int `json:"skip" yaml:"skip"`
	NumWorkers int `json:"num_workers" yaml:"num_workers"`

	ChannelMapDB   string  `json:"channel_map_db" yaml:"channel_map_db"`
	ADCScaleFactor float64 `json:"adc_scale_factor" yaml:"adc_scale_factor"`

	// Waveform overlay in the MC loop
	WaveformRun     int    `json:"waveform_run" yaml:"waveform_run"`
	WaveformEvent   int    `json:"waveform_event" yaml:"waveform_event"`
	WaveformChannel int    `json:"waveform_channel" yaml:"waveform_channel"`
	WaveformTPC     string `json:"waveform_tpc" yaml:"waveform_tpc"`

	// Waveform overlay in the data loop
	DataChannel int    `json:"data_channel" yaml:"data_channel"`
	DataTPC     string `json:"data_tpc" yaml:"data_tpc"`
	TimeLow     int    `json:"time_low" yaml:"time_low"`
	TimeHigh    int    `json:"time_high" yaml:"time_high"`

	SummaryFile      string `json:"summary_file" yaml:"summary_file"`
	CompressionLevel int    `json:"compression_level" yaml:"compression_level"`

	// Central MySQL results database
	Host   string `json:"host" yaml:"host"`
	User   string `json:"user" yaml:"user"`
	Passwd string `json:"pass" yaml:"pass"`
	DBName string `json:"dbname" yaml:"dbname"`

	Experiment string `json:"experiment" yaml:"experiment"`
	Defname    string `json:"defname" yaml:"defname"`
	DataTier   string `json:"data_tier" yaml:"data_tier"`

	Submit SubmitConfig `json:"submit" yaml:"submit"`
}

var configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

func DefaultConfiguration() Configuration {
	var config Configuration

	config.Verbosity = 0
	config.Tag = "test"
	config.OutputDir = "./fclFiles"
	config.LarBinary = "lar"
	config.LarEvents = 5
	config.AnaFile = "hitdump.root"
	config.TreeName = "hitdumper/hitdumpertree"
	config.MaxEvents = 1000000000
	config.NumWorkers = 1
	config.ADCScaleFactor = 1
	config.WaveformRun = 9311
	config.WaveformEvent = 17559
	config.WaveformChannel = 609
	config.WaveformTPC = "EE"
	config.DataChannel = 15700
	config.DataTPC = "EW"
	config.TimeLow = 0
	config.TimeHigh = 5000
	config.CompressionLevel = 4
	config.Host = "localhost"
	config.User = "hittuning"
	config.DBName = "hittuning"
	config.Experiment = "icarus"
	config.DataTier = "raw"
	config.Submit = DefaultSubmitConfig()
	return config
}

// LoadConfiguration reads a JSON or YAML file over the defaults. YAML is
// selected by the .yaml/.yml extension. An empty filename returns the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()
	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, &ErrOpenFile{Filename: filename, Err: err}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("error parsing configuration %s: %w", filename, err)
	}
	return config, nil
}

func PrintConfiguration(config Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Tag: %s", config.Tag), "config")
	logger.Info(fmt.Sprintf("MC: %t", config.MC), "config")
	logger.Info(fmt.Sprintf("Debug: %t", config.Debug), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutputDir), "config")
	logger.Info(fmt.Sprintf("Input file: %s", config.InputFile), "config")
	logger.Info(fmt.Sprintf("Grid file: %s", config.GridFile), "config")
	logger.Info(fmt.Sprintf("lar binary: %s", config.LarBinary), "config")
	logger.Info(fmt.Sprintf("lar events: %d", config.LarEvents), "config")
	logger.Info(fmt.Sprintf("Analysis file: %s", config.AnaFile), "config")
	logger.Info(fmt.Sprintf("Tree name: %s", config.TreeName), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Channel map DB: %s", config.ChannelMapDB), "config")
	logger.Info(fmt.Sprintf("Summary file: %s", config.SummaryFile), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Experiment: %s", config.Experiment), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
