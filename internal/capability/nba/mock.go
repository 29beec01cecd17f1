package nba

import (
	"context"
	"slices"
	"strings"
)

// MockProvider serves a small fixed dataset. It is used for offline runs
// (nba.mock) and in tests.
type MockProvider struct {
	teams     []Team
	players   []Player
	games     []Game
	standings []Standing
	leaders   []Leader
	odds      []Odds
	injuries  []Injury
}

var _ Provider = (*MockProvider)(nil)

var (
	celtics  = Team{ID: 2, Conference: "East", Division: "Atlantic", City: "Boston", Name: "Celtics", FullName: "Boston Celtics", Abbreviation: "BOS"}
	nuggets  = Team{ID: 8, Conference: "West", Division: "Northwest", City: "Denver", Name: "Nuggets", FullName: "Denver Nuggets", Abbreviation: "DEN"}
	warriors = Team{ID: 10, Conference: "West", Division: "Pacific", City: "Golden State", Name: "Warriors", FullName: "Golden State Warriors", Abbreviation: "GSW"}
	lakers   = Team{ID: 14, Conference: "West", Division: "Pacific", City: "Los Angeles", Name: "Lakers", FullName: "Los Angeles Lakers", Abbreviation: "LAL"}
	bucks    = Team{ID: 17, Conference: "East", Division: "Central", City: "Milwaukee", Name: "Bucks", FullName: "Milwaukee Bucks", Abbreviation: "MIL"}
	mavs     = Team{ID: 7, Conference: "West", Division: "Southwest", City: "Dallas", Name: "Mavericks", FullName: "Dallas Mavericks", Abbreviation: "DAL"}
)

func intPtr(v int) *int { return &v }

// NewMockProvider returns a provider over the built-in dataset.
func NewMockProvider() *MockProvider {
	curry := Player{ID: 115, FirstName: "Stephen", LastName: "Curry", Position: "G", Height: "6-2", Weight: "185",
		JerseyNumber: "30", College: "Davidson", Country: "USA", DraftYear: intPtr(2009), Team: warriors}
	lebron := Player{ID: 237, FirstName: "LeBron", LastName: "James", Position: "F", Height: "6-9", Weight: "250",
		JerseyNumber: "23", College: "St. Vincent-St. Mary HS (OH)", Country: "USA", DraftYear: intPtr(2003), Team: lakers}
	kyrie := Player{ID: 228, FirstName: "Kyrie", LastName: "Irving", Position: "G", Height: "6-2", Weight: "195",
		JerseyNumber: "11", College: "Duke", Country: "Australia", DraftYear: intPtr(2011), Team: mavs}
	jokic := Player{ID: 246, FirstName: "Nikola", LastName: "Jokic", Position: "C", Height: "6-11", Weight: "284",
		JerseyNumber: "15", College: "Mega Basket (Serbia)", Country: "Serbia", DraftYear: intPtr(2014), Team: nuggets}
	giannis := Player{ID: 15, FirstName: "Giannis", LastName: "Antetokounmpo", Position: "F", Height: "6-11", Weight: "243",
		JerseyNumber: "34", College: "Filathlitikos (Greece)", Country: "Greece", DraftYear: intPtr(2013), Team: bucks}
	tatum := Player{ID: 434, FirstName: "Jayson", LastName: "Tatum", Position: "F", Height: "6-8", Weight: "210",
		JerseyNumber: "0", College: "Duke", Country: "USA", DraftYear: intPtr(2017), Team: celtics}

	return &MockProvider{
		teams:   []Team{celtics, mavs, nuggets, warriors, lakers, bucks},
		players: []Player{curry, lebron, kyrie, jokic, giannis, tatum},
		games: []Game{
			{ID: 1037593, Date: "2023-10-24", Season: 2023, Status: "Final", HomeTeam: nuggets, HomeTeamScore: 119, VisitorTeam: lakers, VisitorTeamScore: 107},
			{ID: 1037610, Date: "2023-10-27", Season: 2023, Status: "Final", HomeTeam: lakers, HomeTeamScore: 100, VisitorTeam: warriors, VisitorTeamScore: 96},
			{ID: 1037761, Date: "2024-01-27", Season: 2023, Status: "Final", HomeTeam: warriors, HomeTeamScore: 144, VisitorTeam: lakers, VisitorTeamScore: 145},
			{ID: 1037901, Date: "2024-02-22", Season: 2023, Status: "Final", HomeTeam: warriors, HomeTeamScore: 128, VisitorTeam: lakers, VisitorTeamScore: 110},
			{ID: 1038051, Date: "2024-03-16", Season: 2023, Status: "Final", HomeTeam: lakers, HomeTeamScore: 121, VisitorTeam: warriors, VisitorTeamScore: 128},
			{ID: 1038120, Date: "2024-04-01", Season: 2023, Status: "Final", HomeTeam: celtics, HomeTeamScore: 135, VisitorTeam: bucks, VisitorTeamScore: 102},
			{ID: 1038121, Date: "2024-04-01", Season: 2023, Status: "Final", HomeTeam: mavs, HomeTeamScore: 118, VisitorTeam: nuggets, VisitorTeamScore: 104},
		},
		standings: []Standing{
			{Team: celtics, ConferenceRecord: "41-11", ConferenceRank: 1, DivisionRecord: "12-4", DivisionRank: 1, Wins: 64, Losses: 18, HomeRecord: "37-4", RoadRecord: "27-14", Season: 2023},
			{Team: bucks, ConferenceRecord: "33-19", ConferenceRank: 3, DivisionRecord: "11-5", DivisionRank: 1, Wins: 49, Losses: 33, HomeRecord: "31-10", RoadRecord: "18-23", Season: 2023},
			{Team: nuggets, ConferenceRecord: "35-17", ConferenceRank: 2, DivisionRecord: "11-5", DivisionRank: 1, Wins: 57, Losses: 25, HomeRecord: "33-8", RoadRecord: "24-17", Season: 2023},
			{Team: mavs, ConferenceRecord: "33-19", ConferenceRank: 5, DivisionRecord: "10-6", DivisionRank: 1, Wins: 50, Losses: 32, HomeRecord: "25-16", RoadRecord: "25-16", Season: 2023},
			{Team: lakers, ConferenceRecord: "27-25", ConferenceRank: 8, DivisionRecord: "8-8", DivisionRank: 3, Wins: 47, Losses: 35, HomeRecord: "28-13", RoadRecord: "19-22", Season: 2023},
			{Team: warriors, ConferenceRecord: "27-25", ConferenceRank: 10, DivisionRecord: "7-9", DivisionRank: 4, Wins: 46, Losses: 36, HomeRecord: "21-20", RoadRecord: "25-16", Season: 2023},
		},
		leaders: []Leader{
			{Player: giannis, Value: 30.4, StatType: "pts", Rank: 1, Season: 2023, GamesPlayed: 73},
			{Player: jokic, Value: 26.4, StatType: "pts", Rank: 2, Season: 2023, GamesPlayed: 79},
			{Player: curry, Value: 26.4, StatType: "pts", Rank: 3, Season: 2023, GamesPlayed: 74},
			{Player: jokic, Value: 12.4, StatType: "reb", Rank: 1, Season: 2023, GamesPlayed: 79},
			{Player: giannis, Value: 11.5, StatType: "reb", Rank: 2, Season: 2023, GamesPlayed: 73},
			{Player: jokic, Value: 9.0, StatType: "ast", Rank: 1, Season: 2023, GamesPlayed: 79},
			{Player: lebron, Value: 8.3, StatType: "ast", Rank: 2, Season: 2023, GamesPlayed: 71},
			{Player: kyrie, Value: 1.3, StatType: "stl", Rank: 1, Season: 2023, GamesPlayed: 58},
			{Player: giannis, Value: 1.1, StatType: "blk", Rank: 1, Season: 2023, GamesPlayed: 73},
		},
		odds: []Odds{
			{ID: 5001, GameID: 1038120, Vendor: "draftkings", SpreadHomeValue: "-11.5", SpreadHomeOdds: -110, SpreadAwayValue: "11.5", SpreadAwayOdds: -110,
				MoneylineHomeOdds: -750, MoneylineAwayOdds: 525, TotalValue: "226.5", TotalOverOdds: -110, TotalUnderOdds: -110, UpdatedAt: "2024-04-01T18:00:00Z"},
			{ID: 5002, GameID: 1038121, Vendor: "draftkings", SpreadHomeValue: "-2.5", SpreadHomeOdds: -108, SpreadAwayValue: "2.5", SpreadAwayOdds: -112,
				MoneylineHomeOdds: -140, MoneylineAwayOdds: 120, TotalValue: "231.0", TotalOverOdds: -110, TotalUnderOdds: -110, UpdatedAt: "2024-04-01T18:00:00Z"},
		},
		injuries: []Injury{
			{Player: kyrie, ReturnDate: "Nov 1", Description: "Left knee soreness; day-to-day.", Status: "Day-To-Day"},
			{Player: giannis, ReturnDate: "Oct 30", Description: "Right calf strain.", Status: "Out"},
		},
	}
}

func (m *MockProvider) Players(_ context.Context, q PlayerQuery) ([]Player, error) {
	var out []Player
	for _, p := range m.players {
		first, last := strings.ToLower(p.FirstName), strings.ToLower(p.LastName)
		if q.Search != "" {
			s := strings.ToLower(q.Search)
			if !strings.Contains(first, s) && !strings.Contains(last, s) {
				continue
			}
		}
		if q.FirstName != "" && !strings.Contains(first, strings.ToLower(q.FirstName)) {
			continue
		}
		if q.LastName != "" && !strings.Contains(last, strings.ToLower(q.LastName)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockProvider) Teams(_ context.Context) ([]Team, error) {
	return slices.Clone(m.teams), nil
}

func (m *MockProvider) Standings(_ context.Context, season int) ([]Standing, error) {
	var out []Standing
	for _, s := range m.standings {
		if s.Season == season {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockProvider) Leaders(_ context.Context, season int, statType string) ([]Leader, error) {
	var out []Leader
	for _, l := range m.leaders {
		if l.Season == season && l.StatType == statType {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MockProvider) Odds(_ context.Context, q OddsQuery) ([]Odds, error) {
	var out []Odds
	for _, o := range m.odds {
		switch {
		case q.Date != "":
			if g, ok := m.game(o.GameID); ok && g.Date == q.Date {
				out = append(out, o)
			}
		case q.GameID != 0:
			if o.GameID == q.GameID {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *MockProvider) Injuries(_ context.Context) ([]Injury, error) {
	return slices.Clone(m.injuries), nil
}

func (m *MockProvider) Games(_ context.Context, q GamesQuery) ([]Game, error) {
	var out []Game
	for _, g := range m.games {
		if len(q.Seasons) > 0 && !slices.Contains(q.Seasons, g.Season) {
			continue
		}
		if len(q.TeamIDs) > 0 && !slices.Contains(q.TeamIDs, g.HomeTeam.ID) && !slices.Contains(q.TeamIDs, g.VisitorTeam.ID) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *MockProvider) game(id int) (Game, bool) {
	for _, g := range m.games {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}
