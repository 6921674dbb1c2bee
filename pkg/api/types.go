package api

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the metrics server
type ServerConfig struct {
	Addr string
}

// ReplayStatus is the progress of one replay
type ReplayStatus struct {
	Name     string `json:"name"`
	RunID    string `json:"run_id,omitempty"`
	Tick     uint32 `json:"tick"`
	Messages int64  `json:"messages"`
	Entities int    `json:"entities"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// StatusSource reports replay progress
type StatusSource interface {
	Status() []ReplayStatus
}
