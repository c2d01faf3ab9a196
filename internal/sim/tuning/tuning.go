package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	SlotCount  int   `yaml:"slot_count"`
	Steps      int   `yaml:"steps"`
	StepRateHz int   `yaml:"step_rate_hz"`
	Seed       int64 `yaml:"seed"`

	// 0 disables periodic snapshots.
	SnapshotEverySteps int `yaml:"snapshot_every_steps"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	StepLog bool `yaml:"step_log"`
	DrawLog bool `yaml:"draw_log"`
}

func Defaults() Tuning {
	return Tuning{
		SlotCount:  5,
		Steps:      100,
		StepRateHz: 5,
		Log:        LogConfig{StepLog: true, DrawLog: true},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
