package domain

import "time"

// MatchState represents the lifecycle state of a tracked match.
type MatchState string

const (
	MatchStateOngoing  MatchState = "ONGOING"
	MatchStateFinished MatchState = "FINISHED"
)

// Match is one external contest instance being tracked. It is created by the
// discovery poller on first sighting and finalized exactly once by the
// settlement engine. The result is the winning side, set together with the
// FINISHED transition and immutable afterwards.
type Match struct {
	ExternalID string
	State      MatchState
	Result     *Side
	StartedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MatchParticipant records which team a tracked user plays on in a match.
// Upserted idempotently; repeated sightings update, never duplicate.
type MatchParticipant struct {
	MatchID    string
	UserID     string
	PUUID      string
	Team       Side
	ChampionID int64
	CreatedAt  time.Time
}

// ActiveMatch is the provider's report of a participant's live match, already
// mapped into core terms. Team is the participant's side; provider team ids
// are translated at the provider boundary and never appear past it.
type ActiveMatch struct {
	ExternalID string
	Team       Side
	ChampionID int64
	StartedAt  time.Time
}

// MatchOutcome is the provider's authoritative result for one participant of
// a finished match.
type MatchOutcome struct {
	PUUID string
	Won   bool
}
