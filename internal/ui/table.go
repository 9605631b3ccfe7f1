package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PeerTableItem represents one room member in the table
type PeerTableItem struct {
	Index int
	ID    string
	Name  string
	State string
}

// PeerTable renders the current room membership using lipgloss/table
type PeerTable struct {
	items []PeerTableItem
}

// NewPeerTable creates a new peer table
func NewPeerTable(items []PeerTableItem) *PeerTable {
	return &PeerTable{items: items}
}

// View renders the table as a string
func (t *PeerTable) View() string {
	if len(t.items) == 0 {
		return MutedStyle.Render("No peers in the room yet")
	}

	headers := []string{"#", "Peer", "Name", "Link"}

	var rows [][]string
	for _, item := range t.items {
		name := item.Name
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			truncate(item.ID, 12),
			truncate(name, 24),
			item.State,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// Render outputs the table directly to stdout
func (t *PeerTable) Render() {
	fmt.Println(t.View())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

// RoomBanner renders the joined-room box shown before the live view starts.
type RoomBanner struct {
	RoomID string
	SelfID string
}

func (r *RoomBanner) View() string {
	content := fmt.Sprintf("%s Joined room!\n\n%s Room ID:  %s\n%s Your ID:  %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconPeer, MutedStyle.Render(r.SelfID),
	)
	return SuccessBoxStyle.Render(content)
}
