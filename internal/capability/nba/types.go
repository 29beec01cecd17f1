// Package nba provides the basketball data capabilities offered to the model,
// backed by the balldontlie.io API or an in-memory dataset.
package nba

import "context"

// Team is an NBA franchise.
type Team struct {
	ID           int    `json:"id"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	City         string `json:"city"`
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Abbreviation string `json:"abbreviation"`
}

// Player is an NBA player with their current team.
type Player struct {
	ID           int    `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Position     string `json:"position"`
	Height       string `json:"height,omitempty"`
	Weight       string `json:"weight,omitempty"`
	JerseyNumber string `json:"jersey_number,omitempty"`
	College      string `json:"college,omitempty"`
	Country      string `json:"country,omitempty"`
	DraftYear    *int   `json:"draft_year,omitempty"`
	Team         Team   `json:"team"`
}

// Game is a scheduled or completed game.
type Game struct {
	ID               int    `json:"id"`
	Date             string `json:"date"`
	Season           int    `json:"season"`
	Status           string `json:"status"`
	Postseason       bool   `json:"postseason"`
	HomeTeam         Team   `json:"home_team"`
	HomeTeamScore    int    `json:"home_team_score"`
	VisitorTeam      Team   `json:"visitor_team"`
	VisitorTeamScore int    `json:"visitor_team_score"`
}

// Standing is one team's record for a season.
type Standing struct {
	Team             Team   `json:"team"`
	ConferenceRecord string `json:"conference_record"`
	ConferenceRank   int    `json:"conference_rank"`
	DivisionRecord   string `json:"division_record"`
	DivisionRank     int    `json:"division_rank"`
	Wins             int    `json:"wins"`
	Losses           int    `json:"losses"`
	HomeRecord       string `json:"home_record"`
	RoadRecord       string `json:"road_record"`
	Season           int    `json:"season"`
}

// Leader is a player's rank in one statistical category.
type Leader struct {
	Player      Player  `json:"player"`
	Value       float64 `json:"value"`
	StatType    string  `json:"stat_type"`
	Rank        int     `json:"rank"`
	Season      int     `json:"season"`
	GamesPlayed int     `json:"games_played"`
}

// Odds are one vendor's betting lines for a game.
type Odds struct {
	ID                int    `json:"id"`
	GameID            int    `json:"game_id"`
	Vendor            string `json:"vendor"`
	SpreadHomeValue   string `json:"spread_home_value"`
	SpreadHomeOdds    int    `json:"spread_home_odds"`
	SpreadAwayValue   string `json:"spread_away_value"`
	SpreadAwayOdds    int    `json:"spread_away_odds"`
	MoneylineHomeOdds int    `json:"moneyline_home_odds"`
	MoneylineAwayOdds int    `json:"moneyline_away_odds"`
	TotalValue        string `json:"total_value"`
	TotalOverOdds     int    `json:"total_over_odds"`
	TotalUnderOdds    int    `json:"total_under_odds"`
	UpdatedAt         string `json:"updated_at"`
}

// Injury is a player's current injury report.
type Injury struct {
	Player      Player `json:"player"`
	ReturnDate  string `json:"return_date"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// PlayerQuery selects players by name.
type PlayerQuery struct {
	// Search matches either first or last name.
	Search    string
	FirstName string
	LastName  string
}

// OddsQuery selects odds by date (YYYY-MM-DD) or game.
type OddsQuery struct {
	Date   string
	GameID int
}

// GamesQuery selects games involving any of TeamIDs in the given seasons.
type GamesQuery struct {
	TeamIDs []int
	Seasons []int
}

// Provider is a source of basketball data.
type Provider interface {
	Players(ctx context.Context, q PlayerQuery) ([]Player, error)
	Teams(ctx context.Context) ([]Team, error)
	Standings(ctx context.Context, season int) ([]Standing, error)
	Leaders(ctx context.Context, season int, statType string) ([]Leader, error)
	Odds(ctx context.Context, q OddsQuery) ([]Odds, error)
	Injuries(ctx context.Context) ([]Injury, error)
	Games(ctx context.Context, q GamesQuery) ([]Game, error)
}
