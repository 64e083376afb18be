package models

import "time"

// Event sources. Each inbound webhook variant logs under its own source so the
// two query endpoints never mix.
const (
	SourceRemoteCC = "remotecc"
	SourceNotify   = "notify"
)

// RoutingRule is a row of the area-code routing table. AreaCodes is the raw
// comma-separated list exactly as stored.
type RoutingRule struct {
	ID        int64
	State     string
	AreaCodes string
	Extension string
}

// CallEvent is one inbound webhook call as logged. MatchedState and
// MatchedExtension are both nil on a routing miss.
type CallEvent struct {
	ID               int64
	Source           string
	PBXID            string
	CallID           string
	DialedNumber     string
	CallerIDNumber   string
	CallerIDName     string
	CallerAreaCode   string
	MatchedState     *string
	MatchedExtension *string
	CreatedAt        time.Time
}

// Matched reports whether the event carries a routing match.
func (e *CallEvent) Matched() bool {
	return e.MatchedExtension != nil
}
