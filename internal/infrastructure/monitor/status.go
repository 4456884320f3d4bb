package monitor

import "time"

type Status struct {
	Auth      bool      `json:"auth"`
	Table     bool      `json:"table"`
	LastCheck time.Time `json:"last_check"`
}
