package discord

import (
	"fmt"
	"strconv"
	"strings"

	"example.com/partybot/internal/party"

	"github.com/bwmarrin/discordgo"
)

// Custom ID layout carried on interactive components. The trailing v1
// leaves room to evolve the wire shape without breaking stale messages.
//
//	join:<eventID>:<laneKey>:v1
//	leave:<eventID>:v1
//	mgr:<eventID>:v1
//	msel:<eventID>:<laneID>

func joinCustomID(eventID, laneKey string) string {
	return fmt.Sprintf("join:%s:%s:v1", eventID, laneKey)
}

func leaveCustomID(eventID string) string {
	return fmt.Sprintf("leave:%s:v1", eventID)
}

func manageCustomID(eventID string) string {
	return fmt.Sprintf("mgr:%s:v1", eventID)
}

func removalSelectID(eventID string, laneID uint) string {
	return fmt.Sprintf("msel:%s:%d", eventID, laneID)
}

// ActionKind discriminates the parsed component actions
type ActionKind int

const (
	ActionJoin ActionKind = iota
	ActionLeave
	ActionManage
	ActionRemovalSubmit
)

// ComponentAction is a decoded component custom ID
type ComponentAction struct {
	Kind    ActionKind
	EventID string
	LaneKey string
	LaneID  uint
}

// ParseComponentID decodes a component custom ID. Unrecognized or
// malformed IDs return false; callers drop those interactions silently
// since they come from stale or foreign messages.
func ParseComponentID(customID string) (ComponentAction, bool) {
	parts := strings.Split(customID, ":")
	switch {
	case len(parts) == 4 && parts[0] == "join" && parts[3] == "v1":
		if parts[1] == "" || parts[2] == "" {
			return ComponentAction{}, false
		}
		return ComponentAction{Kind: ActionJoin, EventID: parts[1], LaneKey: parts[2]}, true
	case len(parts) == 3 && parts[0] == "leave" && parts[2] == "v1":
		if parts[1] == "" {
			return ComponentAction{}, false
		}
		return ComponentAction{Kind: ActionLeave, EventID: parts[1]}, true
	case len(parts) == 3 && parts[0] == "mgr" && parts[2] == "v1":
		if parts[1] == "" {
			return ComponentAction{}, false
		}
		return ComponentAction{Kind: ActionManage, EventID: parts[1]}, true
	case len(parts) == 3 && parts[0] == "msel":
		laneID, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil || parts[1] == "" {
			return ComponentAction{}, false
		}
		return ComponentAction{Kind: ActionRemovalSubmit, EventID: parts[1], LaneID: uint(laneID)}, true
	default:
		return ComponentAction{}, false
	}
}

// ListingComponents lays out one join button per lane, then a
// leave/manage row. Full lanes keep their button visible but disabled.
func ListingComponents(view party.ListingView) []discordgo.MessageComponent {
	if !view.Event.IsOpen() {
		return nil
	}

	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, lane := range view.Lanes {
		full := !lane.Lane.Unlimited() && len(lane.Occupants) >= lane.Lane.Capacity
		button := discordgo.Button{
			Label:    lane.Lane.Name,
			Style:    discordgo.PrimaryButton,
			CustomID: joinCustomID(view.Event.ID, lane.Lane.LaneKey),
			Disabled: full,
		}
		if lane.Lane.Emoji != "" {
			button.Emoji = discordgo.ComponentEmoji{Name: lane.Lane.Emoji}
		}
		row = append(row, button)
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}

	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Leave",
			Style:    discordgo.SecondaryButton,
			CustomID: leaveCustomID(view.Event.ID),
		},
		discordgo.Button{
			Label:    "Manage",
			Style:    discordgo.DangerButton,
			CustomID: manageCustomID(view.Event.ID),
		},
	}})
	return rows
}

// RemovalSelects renders one multi-select per lane for the manage
// panel. Empty lanes get a disabled placeholder so the panel shape stays
// stable. names maps user IDs to resolved display names; IDs without an
// entry fall back to the raw ID.
func RemovalSelects(view party.ListingView, names map[string]string) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, lane := range view.Lanes {
		menu := discordgo.SelectMenu{
			CustomID:    removalSelectID(view.Event.ID, lane.Lane.ID),
			Placeholder: fmt.Sprintf("Remove from %s", lane.Lane.Name),
		}
		if len(lane.Occupants) == 0 {
			menu.Placeholder = fmt.Sprintf("%s — no players", lane.Lane.Name)
			menu.Disabled = true
			menu.Options = []discordgo.SelectMenuOption{{Label: "No players", Value: "none"}}
		} else {
			maxValues := len(lane.Occupants)
			menu.MaxValues = maxValues
			for _, occ := range lane.Occupants {
				option := discordgo.SelectMenuOption{
					Label: occ.UserID,
					Value: occ.UserID,
				}
				if name, ok := names[occ.UserID]; ok && name != "" {
					option.Label = name
				}
				if occ.GearScore != nil {
					option.Description = fmt.Sprintf("GS %d", *occ.GearScore)
				}
				menu.Options = append(menu.Options, option)
			}
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
		if len(rows) == 5 {
			break
		}
	}
	return rows
}
