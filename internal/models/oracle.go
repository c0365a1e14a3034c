package models

import "time"

// OracleConfig is the process-wide registry record naming the only identity
// allowed to report metrics
type OracleConfig struct {
	Administrator Identity  `json:"administrator"`
	Oracle        Identity  `json:"oracle"`
	UpdatedAt     time.Time `json:"updated_at"`
}
