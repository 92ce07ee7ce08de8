package targets

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

const (
	TargetCloudWatch = "cloudwatch"
	TargetStdout     = "stdout"
)

// Target receives an audit entry for every stored artifact.
type Target interface {
	SendEntries(entryChan <-chan types.AuditEntry)
}

// GetTargets builds the targets listed in targetsConfig. An empty
// configuration disables auditing and returns no targets.
func GetTargets(targetsConfig string, logConfig LogConfig, sess *session.Session) []Target {
	var targets []Target

	for _, t := range strings.Split(targetsConfig, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		var target Target
		var err error

		switch t {
		case TargetCloudWatch:
			target, err = NewCloudWatchTarget(sess, logConfig)
		case TargetStdout:
			target = NewStdoutTarget()
		default:
			log.Warn().Str("target", t).Msg("unsupported audit target type")
			continue
		}

		// Skip any targets that fail to initialize due to missing config or other errors
		if err != nil {
			log.Warn().Err(err).Str("target", t).Msg("could not initialize audit target")
			continue
		}

		targets = append(targets, target)
	}

	return targets
}
