package domain

import "time"

// User is an internal account holding coin balance and, optionally, a link to
// one external contest identity (Riot puuid). Relinking overwrites the
// previous identity; a user never holds two.
type User struct {
	ID             string
	Username       string
	Balance        float64
	PUUID          *string
	RiotTagline    *string
	DailyClaimedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TrackedParticipant is a user with a linked contest identity, as consumed by
// the discovery poller.
type TrackedParticipant struct {
	UserID   string
	Username string
	PUUID    string
}

// Profile aggregates a user's account view for the API.
type Profile struct {
	Username    string     `json:"username"`
	Balance     float64    `json:"balance"`
	TotalWagers int64      `json:"total_wagers"`
	TotalWins   int64      `json:"total_wins"`
	RiotTagline *string    `json:"riot_tagline,omitempty"`
	DailyClaim  *time.Time `json:"daily_claimed_at,omitempty"`
}

// LeaderboardEntry is one row of the balance leaderboard. Winrate is computed
// over finished wagers only.
type LeaderboardEntry struct {
	Username    string  `json:"username"`
	Balance     float64 `json:"balance"`
	TotalWagers int64   `json:"total_wagers"`
	Winrate     float64 `json:"winrate"`
}
