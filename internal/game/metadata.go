package game

// Metadata is the tag section of a game record, filled at creation and
// completed with Result/Termination at conclusion. WhiteElo/BlackElo are only
// present on rated games.
type Metadata struct {
	Event       string `json:"event,omitempty"`
	Site        string `json:"site,omitempty"`
	Variant     string `json:"variant"`
	UTCDate     string `json:"utcDate"`
	UTCTime     string `json:"utcTime"`
	TimeControl string `json:"timeControl"`
	White       string `json:"white"`
	Black       string `json:"black"`
	WhiteID     string `json:"whiteId,omitempty"`
	BlackID     string `json:"blackId,omitempty"`
	WhiteElo    string `json:"whiteElo,omitempty"`
	BlackElo    string `json:"blackElo,omitempty"`
	Result      string `json:"result,omitempty"`
	Termination string `json:"termination,omitempty"`
}
