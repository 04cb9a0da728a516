package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pursuitlab/roadchase/internal/util"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// ParseRemotePoses parses [json] holding an array of remote player poses.
// Entries without an ID or with non-finite coordinates are skipped and logged.
// Entries without a timestamp are stamped with the parse time.
func (p *Parser) ParseRemotePoses(data []string) ([]core.RemotePose, error) {
	if err := argCount(":REMOTE:POSES:", data, 1, 1); err != nil {
		return nil, err
	}
	raw := util.FixEscapeQuotes(strings.TrimSpace(data[0]))
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}

	var poses []core.RemotePose
	if err := json.Unmarshal([]byte(raw), &poses); err != nil {
		return nil, fmt.Errorf("%w: remote poses: %v", ErrInvalidArgs, err)
	}

	nowMs := p.now().UnixMilli()
	out := poses[:0]
	for _, rp := range poses {
		if rp.ID == "" || !finite(rp.Position.X) || !finite(rp.Position.Z) || !finite(rp.Heading) {
			p.logger.Warn("skipping remote pose", "id", rp.ID)
			continue
		}
		if rp.Timestamp == 0 {
			rp.Timestamp = nowMs
		}
		out = append(out, rp)
	}
	return out, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
