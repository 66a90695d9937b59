package fixture

import "strings"

// Phase groups provider short status codes into the families the scoreboard reasons about.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseLive       Phase = "live"
	PhaseEnded      Phase = "ended"
	PhaseUnknown    Phase = "unknown"
)

const (
	StatusNotStarted   = "NS"
	StatusToBeDefined  = "TBD"
	StatusFirstHalf    = "1H"
	StatusHalfTime     = "HT"
	StatusSecondHalf   = "2H"
	StatusExtraTime    = "ET"
	StatusBreakTime    = "BT"
	StatusPenaltyShoot = "P"
	StatusLive         = "LIVE"
	StatusInterrupted  = "INT"
	StatusFullTime     = "FT"
	StatusAfterExtra   = "AET"
	StatusPenalties    = "PEN"
	StatusAwarded      = "AWD"
	StatusWalkover     = "WO"
	StatusAbandoned    = "ABD"
	StatusCancelled    = "CANC"
	StatusSuspended    = "SUSP"
)

var phaseByStatus = map[string]Phase{
	StatusNotStarted:   PhaseNotStarted,
	StatusToBeDefined:  PhaseNotStarted,
	StatusFirstHalf:    PhaseLive,
	StatusHalfTime:     PhaseLive,
	StatusSecondHalf:   PhaseLive,
	StatusExtraTime:    PhaseLive,
	StatusBreakTime:    PhaseLive,
	StatusPenaltyShoot: PhaseLive,
	StatusLive:         PhaseLive,
	StatusInterrupted:  PhaseLive,
	StatusFullTime:     PhaseEnded,
	StatusAfterExtra:   PhaseEnded,
	StatusPenalties:    PhaseEnded,
	StatusAwarded:      PhaseEnded,
	StatusWalkover:     PhaseEnded,
	StatusAbandoned:    PhaseEnded,
	StatusCancelled:    PhaseEnded,
	StatusSuspended:    PhaseEnded,
}

func NormalizeStatus(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// PhaseOf maps a short status code to its family. Empty and unrecognised codes are PhaseUnknown.
func PhaseOf(status string) Phase {
	if phase, ok := phaseByStatus[NormalizeStatus(status)]; ok {
		return phase
	}
	return PhaseUnknown
}

func IsLiveStatus(status string) bool {
	return PhaseOf(status) == PhaseLive
}

func IsFinishedStatus(status string) bool {
	return PhaseOf(status) == PhaseEnded
}

func IsNotStartedStatus(status string) bool {
	return PhaseOf(status) == PhaseNotStarted
}
