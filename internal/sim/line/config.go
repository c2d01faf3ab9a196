package line

// Config carries the run parameters of one production line.
type Config struct {
	RunID      string
	SlotCount  int
	Steps      int // 0 means unbounded; drivers usually set it
	StepRateHz int // server pacing only; one-shot runs ignore it
	Seed       int64
}

func (c *Config) applyDefaults() {
	if c.RunID == "" {
		c.RunID = "run_1"
	}
	if c.SlotCount <= 0 {
		c.SlotCount = 5
	}
	if c.StepRateHz <= 0 {
		c.StepRateHz = 5
	}
}
