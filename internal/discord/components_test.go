package discord

import (
	"testing"

	"example.com/partybot/internal/models"
	"example.com/partybot/internal/party"
	"example.com/partybot/internal/signup"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func TestParseComponentID(t *testing.T) {
	tests := []struct {
		customID string
		want     ComponentAction
		ok       bool
	}{
		{"join:evt_ab12:dps:v1", ComponentAction{Kind: ActionJoin, EventID: "evt_ab12", LaneKey: "dps"}, true},
		{"leave:evt_ab12:v1", ComponentAction{Kind: ActionLeave, EventID: "evt_ab12"}, true},
		{"mgr:evt_ab12:v1", ComponentAction{Kind: ActionManage, EventID: "evt_ab12"}, true},
		{"msel:evt_ab12:7", ComponentAction{Kind: ActionRemovalSubmit, EventID: "evt_ab12", LaneID: 7}, true},
		{"join:evt_ab12:dps:v2", ComponentAction{}, false},
		{"join::dps:v1", ComponentAction{}, false},
		{"join:evt_ab12::v1", ComponentAction{}, false},
		{"leave:evt_ab12", ComponentAction{}, false},
		{"msel:evt_ab12:notanumber", ComponentAction{}, false},
		{"msel::7", ComponentAction{}, false},
		{"something:else", ComponentAction{}, false},
		{"", ComponentAction{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.customID, func(t *testing.T) {
			got, ok := ParseComponentID(tt.customID)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestComponentIDRoundTrip(t *testing.T) {
	action, ok := ParseComponentID(joinCustomID("evt_xy99", "tank"))
	require.True(t, ok)
	require.Equal(t, ComponentAction{Kind: ActionJoin, EventID: "evt_xy99", LaneKey: "tank"}, action)

	action, ok = ParseComponentID(removalSelectID("evt_xy99", 12))
	require.True(t, ok)
	require.Equal(t, uint(12), action.LaneID)
}

func testView(status string) party.ListingView {
	return party.ListingView{
		Event: models.Event{ID: "evt_ab12", Title: "Raid", Status: status, CreatorID: "creator-1"},
		Lanes: []signup.LaneView{
			{
				Lane:      models.Lane{ID: 1, LaneKey: "tank", Name: "Tank", Capacity: 1},
				Occupants: []signup.Occupant{{UserID: "user-1"}},
			},
			{
				Lane: models.Lane{ID: 2, LaneKey: "dps", Name: "DPS", Capacity: 4},
			},
		},
	}
}

func TestListingComponentsDisableFullLanes(t *testing.T) {
	rows := ListingComponents(testView(models.EventStatusOpen))
	require.Len(t, rows, 2)

	joinRow := rows[0].(discordgo.ActionsRow)
	tank := joinRow.Components[0].(discordgo.Button)
	require.True(t, tank.Disabled)
	require.Equal(t, "join:evt_ab12:tank:v1", tank.CustomID)
	dps := joinRow.Components[1].(discordgo.Button)
	require.False(t, dps.Disabled)

	controlRow := rows[1].(discordgo.ActionsRow)
	require.Equal(t, "leave:evt_ab12:v1", controlRow.Components[0].(discordgo.Button).CustomID)
	require.Equal(t, "mgr:evt_ab12:v1", controlRow.Components[1].(discordgo.Button).CustomID)
}

func TestListingComponentsEmptyWhenClosed(t *testing.T) {
	require.Empty(t, ListingComponents(testView(models.EventStatusClosed)))
}

func TestRemovalSelects(t *testing.T) {
	names := map[string]string{"user-1": "Alice"}
	rows := RemovalSelects(testView(models.EventStatusOpen), names)
	require.Len(t, rows, 2)

	tankMenu := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	require.Equal(t, "msel:evt_ab12:1", tankMenu.CustomID)
	require.False(t, tankMenu.Disabled)
	require.Equal(t, "Alice", tankMenu.Options[0].Label)
	require.Equal(t, "user-1", tankMenu.Options[0].Value)

	dpsMenu := rows[1].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	require.True(t, dpsMenu.Disabled)
}

func TestListingEmbedStatusAndPadding(t *testing.T) {
	embed := ListingEmbed(testView(models.EventStatusOpen))
	require.Equal(t, "Raid", embed.Title)
	require.Equal(t, colorOpen, embed.Color)
	// Time + Host headers, then lane fields padded to a multiple of three.
	require.Len(t, embed.Fields, 5)
	require.Equal(t, "​", embed.Fields[4].Name)
	require.Contains(t, embed.Fields[2].Name, "Tank (1/1)")
	require.Contains(t, embed.Fields[2].Value, "<@user-1>")
	require.Equal(t, "—", embed.Fields[3].Value)

	closed := ListingEmbed(testView(models.EventStatusClosed))
	require.Equal(t, "[CLOSED] Raid", closed.Title)
	require.Equal(t, colorClosed, closed.Color)
}

func TestListingEmbedMinGearScoreField(t *testing.T) {
	view := testView(models.EventStatusOpen)
	min := 1600
	view.Event.MinGearScore = &min

	embed := ListingEmbed(view)
	require.Equal(t, "Min GS", embed.Fields[2].Name)
	require.Equal(t, "1600", embed.Fields[2].Value)
}
