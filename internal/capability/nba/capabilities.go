package nba

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/courtside/internal/capability"
)

// PlayerInfoArgs are the arguments of get_player_info.
type PlayerInfoArgs struct {
	PlayerName string `json:"player_name" jsonschema_description:"Full name of the player (e.g., \"Stephen Curry\")"`
}

// TeamInfoArgs are the arguments of get_team_info.
type TeamInfoArgs struct {
	TeamName string `json:"team_name" jsonschema_description:"Name of the team (e.g., \"Warriors\" or \"Golden State Warriors\")"`
}

// StandingsArgs are the arguments of get_team_standings.
type StandingsArgs struct {
	Season int `json:"season" jsonschema_description:"The season year (e.g., 2023 for 2023-24 season)"`
}

// LeadersArgs are the arguments of get_league_leaders.
type LeadersArgs struct {
	Season   int    `json:"season" jsonschema_description:"The season year (e.g., 2023 for 2023-24 season)"`
	StatType string `json:"stat_type" jsonschema:"enum=pts,enum=reb,enum=ast,enum=stl,enum=blk" jsonschema_description:"Type of stat to get leaders for"`
}

// GameOddsArgs are the arguments of get_game_odds.
type GameOddsArgs struct {
	GameDate string `json:"game_date,omitempty" jsonschema_description:"Date of games in YYYY-MM-DD format (e.g., \"2024-04-01\")"`
	GameID   int    `json:"game_id,omitempty" jsonschema_description:"Specific game ID to get odds for"`
}

// InjuriesArgs are the (empty) arguments of get_player_injuries.
type InjuriesArgs struct{}

// HeadToHeadArgs are the arguments of get_head_to_head_stats.
type HeadToHeadArgs struct {
	Team1Name string `json:"team1_name" jsonschema_description:"Name of first team"`
	Team2Name string `json:"team2_name" jsonschema_description:"Name of second team"`
	Season    int    `json:"season" jsonschema_description:"The season year (e.g., 2023 for 2023-24 season)"`
}

// lookupError is returned as a capability result so the model can explain a
// miss to the user instead of the request failing.
type lookupError struct {
	Error string `json:"error"`
}

// Capabilities returns the basketball capabilities backed by p, in the order
// they are advertised to the model.
func Capabilities(p Provider) []capability.Capability {
	s := &service{provider: p}
	return []capability.Capability{
		capability.MustNew("get_player_info",
			"Get detailed information about an NBA player, including position, height, weight and team.",
			s.playerInfo),
		capability.MustNew("get_team_info",
			"Get detailed information about an NBA team, including full name, conference and division.",
			s.teamInfo),
		capability.MustNew("get_team_standings",
			"Get the NBA standings for a specific season, including wins, losses and conference rank.",
			s.standings),
		capability.MustNew("get_league_leaders",
			"Get the NBA statistical leaders for a specific category and season.",
			s.leaders),
		capability.MustNew("get_game_odds",
			"Get betting odds for NBA games on a date or for a specific game, including moneyline, spread and over/under.",
			s.gameOdds),
		capability.MustNew("get_player_injuries",
			"Get current NBA player injuries, including status and expected return.",
			s.injuries),
		capability.MustNew("get_head_to_head_stats",
			"Get head-to-head statistics between two teams for a specific season.",
			s.headToHead),
	}
}

type service struct {
	provider Provider
}

func (s *service) playerInfo(ctx context.Context, args PlayerInfoArgs) (any, error) {
	name := strings.TrimSpace(args.PlayerName)
	if name == "" {
		return lookupError{Error: "player_name must not be empty"}, nil
	}

	q := PlayerQuery{Search: name}
	if first, last, ok := strings.Cut(name, " "); ok {
		q = PlayerQuery{FirstName: first, LastName: strings.TrimSpace(last)}
	}

	players, err := s.provider.Players(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch player info: %w", err)
	}
	if len(players) == 0 {
		return lookupError{Error: fmt.Sprintf("No player found with name %s", name)}, nil
	}
	return players[0], nil
}

func (s *service) teamInfo(ctx context.Context, args TeamInfoArgs) (any, error) {
	team, found, err := s.findTeam(ctx, args.TeamName)
	if err != nil {
		return nil, err
	}
	if !found {
		return lookupError{Error: fmt.Sprintf("No team found with name %s", args.TeamName)}, nil
	}
	return team, nil
}

func (s *service) standings(ctx context.Context, args StandingsArgs) (any, error) {
	standings, err := s.provider.Standings(ctx, args.Season)
	if err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}
	return nonNil(standings), nil
}

func (s *service) leaders(ctx context.Context, args LeadersArgs) (any, error) {
	statType := strings.ToLower(strings.TrimSpace(args.StatType))
	switch statType {
	case "pts", "reb", "ast", "stl", "blk":
	default:
		return lookupError{Error: fmt.Sprintf("Unsupported stat_type %q; use one of pts, reb, ast, stl, blk", args.StatType)}, nil
	}

	leaders, err := s.provider.Leaders(ctx, args.Season, statType)
	if err != nil {
		return nil, fmt.Errorf("fetch league leaders: %w", err)
	}
	return nonNil(leaders), nil
}

func (s *service) gameOdds(ctx context.Context, args GameOddsArgs) (any, error) {
	if args.GameDate == "" && args.GameID == 0 {
		return lookupError{Error: "Either game_date or game_id must be provided"}, nil
	}

	odds, err := s.provider.Odds(ctx, OddsQuery{Date: args.GameDate, GameID: args.GameID})
	if err != nil {
		return nil, fmt.Errorf("fetch game odds: %w", err)
	}
	return nonNil(odds), nil
}

func (s *service) injuries(ctx context.Context, _ InjuriesArgs) (any, error) {
	injuries, err := s.provider.Injuries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch player injuries: %w", err)
	}
	return nonNil(injuries), nil
}

func (s *service) headToHead(ctx context.Context, args HeadToHeadArgs) (any, error) {
	team1, found1, err := s.findTeam(ctx, args.Team1Name)
	if err != nil {
		return nil, err
	}
	team2, found2, err := s.findTeam(ctx, args.Team2Name)
	if err != nil {
		return nil, err
	}
	if !found1 || !found2 {
		return lookupError{Error: "One or both teams not found"}, nil
	}
	if team1.ID == team2.ID {
		return lookupError{Error: fmt.Sprintf("Both names refer to the %s; head-to-head needs two different teams", team1.FullName)}, nil
	}

	games, err := s.provider.Games(ctx, GamesQuery{
		TeamIDs: []int{team1.ID, team2.ID},
		Seasons: []int{args.Season},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}

	// The games filter matches either team; keep only meetings between the two.
	meetings := make([]Game, 0, len(games))
	wins := map[int]int{team1.ID: 0, team2.ID: 0}
	for _, g := range games {
		if !involves(g, team1.ID) || !involves(g, team2.ID) {
			continue
		}
		meetings = append(meetings, g)
		switch {
		case g.HomeTeamScore > g.VisitorTeamScore:
			wins[g.HomeTeam.ID]++
		case g.VisitorTeamScore > g.HomeTeamScore:
			wins[g.VisitorTeam.ID]++
		}
	}

	return map[string]any{
		"total_games":        len(meetings),
		team1.Name + "_wins": wins[team1.ID],
		team2.Name + "_wins": wins[team2.ID],
		"games":              meetings,
	}, nil
}

// findTeam matches name case-insensitively against each team's full name and
// nickname, returning the first match in provider order.
func (s *service) findTeam(ctx context.Context, name string) (Team, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Team{}, false, nil
	}

	teams, err := s.provider.Teams(ctx)
	if err != nil {
		return Team{}, false, fmt.Errorf("fetch teams: %w", err)
	}
	for _, t := range teams {
		if strings.Contains(strings.ToLower(t.FullName), needle) ||
			strings.Contains(strings.ToLower(t.Name), needle) {
			return t, true, nil
		}
	}
	return Team{}, false, nil
}

func involves(g Game, teamID int) bool {
	return g.HomeTeam.ID == teamID || g.VisitorTeam.ID == teamID
}

// nonNil keeps empty results serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
