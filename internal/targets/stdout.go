package targets

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

type StdoutTarget struct{}

func (c *StdoutTarget) SendEntries(entryChan <-chan types.AuditEntry) {
	for entry := range entryChan {
		jsonData, err := json.Marshal(entry.Data)
		if err != nil {
			log.Error().Err(err).Msg("error marshaling audit entry to JSON")
			continue
		}
		fmt.Printf("[%s] Transcoded: %s\n", entry.Timestamp.Format(time.RFC3339), jsonData)
	}
}

func NewStdoutTarget() *StdoutTarget {
	return &StdoutTarget{}
}
