package protocol

// HelloMsg opens an observer session.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name,omitempty"`
}

// WelcomeMsg answers a HELLO with the run parameters and catalog digests so
// an observer can detect configuration drift.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ObserverID      string         `json:"observer_id"`
	RunParams       RunParams      `json:"run_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type RunParams struct {
	RunID      string `json:"run_id"`
	SlotCount  int    `json:"slot_count"`
	StepRateHz int    `json:"step_rate_hz"`
	Steps      int    `json:"steps"`
	Seed       int64  `json:"seed"`
}

type CatalogDigests struct {
	KindPalette   DigestRef `json:"kind_palette"`
	KindsDigest   string    `json:"kinds_digest"`
	WorkersDigest string    `json:"workers_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// StepMsg is pushed to observers after every simulation step.
type StepMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Step            uint64            `json:"step"`
	Slots           []string          `json:"slots"`
	Generated       string            `json:"generated"`
	Worker          string            `json:"worker,omitempty"`
	Workers         []WorkerState     `json:"workers"`
	Counts          map[string]uint64 `json:"counts"`
	Anomaly         string            `json:"anomaly,omitempty"`
	Digest          string            `json:"digest"`
}

type WorkerState struct {
	ID        string `json:"id"`
	Pos       int    `json:"pos"`
	Left      string `json:"left"`
	Right     string `json:"right"`
	Countdown int    `json:"countdown"`
	Holding   string `json:"holding,omitempty"`
}

// SummaryMsg closes a run with the final belt statistics.
type SummaryMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	RunID           string            `json:"run_id"`
	Steps           uint64            `json:"steps"`
	Counts          map[string]uint64 `json:"counts"`
	Digest          string            `json:"digest"`
}
