package sio

import (
	"os"

	"github.com/jsccast/yaml"
)

// CrewConf provides some basic Crew parameters.
type CrewConf struct {
	// Id is the crew's id, which is also its storage key.
	Id string `json:"id" yaml:"id"`

	// HaltOnInputEOF stops the Loop when the input coupling is
	// exhausted.
	HaltOnInputEOF bool `json:"haltOnInputEOF,omitempty" yaml:"haltOnInputEOF,omitempty"`

	// SpecDir is where named specs are found as NAME.yaml,
	// NAME.yml, or NAME.json.
	SpecDir string `json:"specDir,omitempty" yaml:"specDir,omitempty"`

	// MaxPending limits the number of messages (the input and
	// everything machines route back to the crew) processed
	// for one input message.
	MaxPending int `json:"maxPending,omitempty" yaml:"maxPending,omitempty"`

	// MaxTimers limits each machine's pending delays.
	MaxTimers int `json:"maxTimers,omitempty" yaml:"maxTimers,omitempty"`

	// Machines are spawned when the crew starts unless a machine
	// with the same id was restored.
	Machines map[string]*MachineConf `json:"machines,omitempty" yaml:"machines,omitempty"`
}

// MachineConf describes a machine to spawn.
type MachineConf struct {
	Spec    string                 `json:"spec" yaml:"spec"`
	Context map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
}

// DefaultMaxPending is used when CrewConf.MaxPending isn't positive.
var DefaultMaxPending = 1000

// NewCrewConf makes a configuration with the given id.
func NewCrewConf(id string) *CrewConf {
	return &CrewConf{
		Id:         id,
		MaxPending: DefaultMaxPending,
	}
}

// ReadCrewConf reads a YAML (or JSON) crew configuration.
func ReadCrewConf(filename string) (*CrewConf, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	conf := NewCrewConf("")
	if err = yaml.Unmarshal(bs, conf); err != nil {
		return nil, err
	}
	return conf, nil
}
