package nba

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/courtside/internal/capability"
	"github.com/tjfontaine/courtside/internal/testutil"
)

func vcrClient(t *testing.T, cassette string) *Client {
	t.Helper()
	httpClient := testutil.ReplayClient(t, cassette, "BALLDONTLIE_API_KEY")

	apiKey := os.Getenv("BALLDONTLIE_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}
	return NewClient(apiKey, WithHTTPClient(httpClient))
}

func TestClient_Teams(t *testing.T) {
	client := vcrClient(t, "balldontlie_teams")

	teams, err := client.Teams(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 3)
	assert.Equal(t, "Los Angeles Lakers", teams[2].FullName)
	assert.Equal(t, 14, teams[2].ID)
}

func TestClient_PlayerByFullName(t *testing.T) {
	client := vcrClient(t, "balldontlie_player")

	players, err := client.Players(context.Background(), PlayerQuery{FirstName: "Stephen", LastName: "Curry"})
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Davidson", players[0].College)
	require.NotNil(t, players[0].DraftYear)
	assert.Equal(t, 2009, *players[0].DraftYear)
	assert.Equal(t, "Warriors", players[0].Team.Name)
}

func TestClient_HeadToHeadFollowsCursor(t *testing.T) {
	client := vcrClient(t, "balldontlie_head_to_head")

	reg, err := capability.NewRegistry(Capabilities(client))
	require.NoError(t, err)

	out, err := reg.Invoke(context.Background(), "get_head_to_head_stats",
		json.RawMessage(`{"team1_name":"Lakers","team2_name":"Warriors","season":2023}`))
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 3, stats["total_games"])
	assert.EqualValues(t, 1, stats["Lakers_wins"])
	assert.EqualValues(t, 2, stats["Warriors_wins"])
}

func TestClient_ErrorStatus(t *testing.T) {
	client := vcrClient(t, "balldontlie_unauthorized")

	_, err := client.Injuries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestClient_OddsNeedsQuery(t *testing.T) {
	client := NewClient("")
	_, err := client.Odds(context.Background(), OddsQuery{})
	assert.Error(t, err)
}
