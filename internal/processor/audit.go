package processor

import (
	"sync"

	"github.com/jdwit/s3-jpeg-transcoder/internal/targets"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
)

// auditor fans every entry out to all targets for the duration of one run.
type auditor struct {
	chans []chan types.AuditEntry
	wg    sync.WaitGroup
}

func startAuditor(ts []targets.Target, size int) *auditor {
	a := &auditor{}
	for _, target := range ts {
		ch := make(chan types.AuditEntry, size)
		a.chans = append(a.chans, ch)
		a.wg.Add(1)
		go func(t targets.Target) {
			defer a.wg.Done()
			t.SendEntries(ch)
		}(target)
	}
	return a
}

func (a *auditor) emit(entry types.AuditEntry) {
	for _, ch := range a.chans {
		ch <- entry
	}
}

// close flushes all targets and waits for them to finish.
func (a *auditor) close() {
	for _, ch := range a.chans {
		close(ch)
	}
	a.wg.Wait()
}
