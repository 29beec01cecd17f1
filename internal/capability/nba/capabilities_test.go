package nba

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/courtside/internal/capability"
	"github.com/tjfontaine/courtside/internal/domain"
)

func mockRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg, err := capability.NewRegistry(Capabilities(NewMockProvider()))
	require.NoError(t, err)
	return reg
}

func invoke(t *testing.T, reg *capability.Registry, name, args string) map[string]any {
	t.Helper()
	out, err := reg.Invoke(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), "result: %s", out)
	return v
}

func invokeList(t *testing.T, reg *capability.Registry, name, args string) []map[string]any {
	t.Helper()
	out, err := reg.Invoke(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	var v []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), "result: %s", out)
	return v
}

func TestCapabilities_Advertised(t *testing.T) {
	reg := mockRegistry(t)

	assert.Equal(t, []string{
		"get_player_info",
		"get_team_info",
		"get_team_standings",
		"get_league_leaders",
		"get_game_odds",
		"get_player_injuries",
		"get_head_to_head_stats",
	}, reg.Names())

	required := map[string][]string{}
	for _, d := range reg.Describe() {
		for _, p := range d.Parameters {
			if p.Required {
				required[d.Name] = append(required[d.Name], p.Name)
			}
		}
	}
	assert.Equal(t, []string{"player_name"}, required["get_player_info"])
	assert.Equal(t, []string{"team_name"}, required["get_team_info"])
	assert.Equal(t, []string{"season", "stat_type"}, required["get_league_leaders"])
	assert.Equal(t, []string{"team1_name", "team2_name", "season"}, required["get_head_to_head_stats"])
	assert.Empty(t, required["get_game_odds"])
	assert.Empty(t, required["get_player_injuries"])
}

func TestTeamInfo(t *testing.T) {
	reg := mockRegistry(t)

	tests := []struct {
		query    string
		wantName string
	}{
		{"Lakers", "Los Angeles Lakers"},
		{"lakers", "Los Angeles Lakers"},
		{"Golden State", "Golden State Warriors"},
		{"Warriors", "Golden State Warriors"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			team := invoke(t, reg, "get_team_info", `{"team_name":"`+tt.query+`"}`)
			assert.Equal(t, tt.wantName, team["full_name"])
		})
	}

	miss := invoke(t, reg, "get_team_info", `{"team_name":"Sonics"}`)
	assert.Equal(t, "No team found with name Sonics", miss["error"])
}

func TestPlayerInfo(t *testing.T) {
	reg := mockRegistry(t)

	player := invoke(t, reg, "get_player_info", `{"player_name":"Stephen Curry"}`)
	assert.Equal(t, "Curry", player["last_name"])
	assert.Equal(t, "Golden State Warriors", player["team"].(map[string]any)["full_name"])

	single := invoke(t, reg, "get_player_info", `{"player_name":"Jokic"}`)
	assert.Equal(t, "Nikola", single["first_name"])

	miss := invoke(t, reg, "get_player_info", `{"player_name":"Michael Jordan"}`)
	assert.Equal(t, "No player found with name Michael Jordan", miss["error"])
}

func TestStandingsAndLeaders(t *testing.T) {
	reg := mockRegistry(t)

	standings := invokeList(t, reg, "get_team_standings", `{"season":2023}`)
	assert.Len(t, standings, 6)

	empty, err := reg.Invoke(context.Background(), "get_team_standings", json.RawMessage(`{"season":1990}`))
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	leaders := invokeList(t, reg, "get_league_leaders", `{"season":"2023","stat_type":"PTS"}`)
	require.Len(t, leaders, 3)
	assert.EqualValues(t, 1, leaders[0]["rank"])

	bad := invoke(t, reg, "get_league_leaders", `{"season":2023,"stat_type":"fg_pct"}`)
	assert.Contains(t, bad["error"], "Unsupported stat_type")
}

func TestGameOdds(t *testing.T) {
	reg := mockRegistry(t)

	byDate := invokeList(t, reg, "get_game_odds", `{"game_date":"2024-04-01"}`)
	assert.Len(t, byDate, 2)

	byGame := invokeList(t, reg, "get_game_odds", `{"game_id":1038121}`)
	require.Len(t, byGame, 1)
	assert.EqualValues(t, 1038121, byGame[0]["game_id"])

	neither := invoke(t, reg, "get_game_odds", `{}`)
	assert.Equal(t, "Either game_date or game_id must be provided", neither["error"])
}

func TestPlayerInjuries(t *testing.T) {
	reg := mockRegistry(t)

	injuries := invokeList(t, reg, "get_player_injuries", `{}`)
	assert.Len(t, injuries, 2)
}

func TestHeadToHead(t *testing.T) {
	reg := mockRegistry(t)

	stats := invoke(t, reg, "get_head_to_head_stats", `{"team1_name":"Lakers","team2_name":"Warriors","season":2023}`)
	assert.EqualValues(t, 4, stats["total_games"])
	assert.EqualValues(t, 2, stats["Lakers_wins"])
	assert.EqualValues(t, 2, stats["Warriors_wins"])
	assert.Len(t, stats["games"], 4)

	none := invoke(t, reg, "get_head_to_head_stats", `{"team1_name":"Lakers","team2_name":"Celtics","season":2023}`)
	assert.EqualValues(t, 0, none["total_games"])
	assert.Equal(t, []any{}, none["games"])

	miss := invoke(t, reg, "get_head_to_head_stats", `{"team1_name":"Lakers","team2_name":"Sonics","season":2023}`)
	assert.Equal(t, "One or both teams not found", miss["error"])
}

func TestHeadToHead_SameTeam(t *testing.T) {
	reg := mockRegistry(t)

	same := invoke(t, reg, "get_head_to_head_stats", `{"team1_name":"Lakers","team2_name":"Los Angeles Lakers","season":2023}`)
	assert.Equal(t, "Both names refer to the Los Angeles Lakers; head-to-head needs two different teams", same["error"])
	assert.NotContains(t, same, "total_games")
}

type failingProvider struct {
	MockProvider
}

func (failingProvider) Teams(context.Context) ([]Team, error) {
	return nil, errors.New("connection refused")
}

func TestProviderFailureIsCapabilityFailure(t *testing.T) {
	reg, err := capability.NewRegistry(Capabilities(&failingProvider{}))
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "get_team_info", json.RawMessage(`{"team_name":"Lakers"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityFailed))
	assert.Contains(t, err.Error(), "connection refused")
}
