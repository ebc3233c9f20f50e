package models

import "time"

// ConfigChange: запись журнала изменений живых параметров.
type ConfigChange struct {
	ChangedAt time.Time `json:"changed_at"`
	Field     string    `json:"field"`
	OldValue  float64   `json:"old_value"`
	NewValue  float64   `json:"new_value"`
	Source    string    `json:"source"` // telegram:<chat_id> | http
}
