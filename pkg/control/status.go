package control

// Status is the snapshot published after every cycle.
type Status struct {
	Cycle      uint64   `json:"cycle"`
	FPS        float64  `json:"fps"`
	Occupancy  [3]bool  `json:"occupancy"`
	Distance   float64  `json:"distance_m"` // 0 when unavailable
	HasRange   bool     `json:"has_range"`
	Safe       string   `json:"safe_direction"`
	Haptics    [3]int   `json:"haptics"`
	Detections int      `json:"detections"`
	Top        string   `json:"top,omitempty"`
	LastPhrase string   `json:"last_phrase"`
	Muted      bool     `json:"muted"`
	Rate       int      `json:"rate"`
	Volume     float64  `json:"volume"`
	Voice      string   `json:"voice,omitempty"`
	SOS        SOSState `json:"sos"`
}

// SOSState summarises the alert dispatcher.
type SOSState struct {
	Enabled     bool   `json:"enabled"`
	Busy        bool   `json:"busy"`
	Presses     int    `json:"presses"`
	LastSent    bool   `json:"last_sent"`
	LastChannel string `json:"last_channel,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LastAt      string `json:"last_at,omitempty"`
}

// StatusSink receives the per-cycle snapshot. Publish must not block.
type StatusSink interface {
	Publish(Status)
}
