package types

import "time"

type AuditEntry struct {
	Data      map[string]string // Map of field name to value, this will be converted to JSON
	Timestamp time.Time
}
