package riot

// Wire types for the Riot API endpoints the client consumes. Only the fields
// the engine needs are decoded.

// accountDTO is the account-v1 by-riot-id response.
type accountDTO struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// activeGameDTO is the spectator-v5 active game response.
type activeGameDTO struct {
	GameID        int64  `json:"gameId"`
	PlatformID    string `json:"platformId"`
	GameStartTime int64  `json:"gameStartTime"` // unix milliseconds
	Participants  []struct {
		PUUID      string `json:"puuid"`
		TeamID     int64  `json:"teamId"`
		ChampionID int64  `json:"championId"`
	} `json:"participants"`
}

// matchDTO is the match-v5 response, reduced to outcome fields.
type matchDTO struct {
	Info struct {
		EndOfGameResult string `json:"endOfGameResult"`
		Participants    []struct {
			PUUID string `json:"puuid"`
			Win   bool   `json:"win"`
		} `json:"participants"`
	} `json:"info"`
}
