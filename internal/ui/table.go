package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomRow is one open room as returned by the rendezvous API.
type RoomRow struct {
	RoomID      string
	ClientCount int
	CreatedAt   time.Time
}

// RenderRoomTable prints the open-room listing.
func RenderRoomTable(rows []RoomRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("No open rooms"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Room ID", "Players", "Created"})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.RoomID,
			fmt.Sprintf("%d/2", r.ClientCount),
			r.CreatedAt.Format(time.Kitchen),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignCenter},
	})
	t.Render()
}

// SessionSummary is the end-of-session report.
type SessionSummary struct {
	RoomID   string
	PeerName string
	Duration string
	Actions  int
	States   int
}

// RenderSessionSummary prints the end-of-session stats table.
func RenderSessionSummary(title string, summary SessionSummary) {
	fmt.Println(TitleStyle.Render(title))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Room", summary.RoomID},
		{"Peer", summary.PeerName},
		{"Duration", summary.Duration},
		{"Actions", summary.Actions},
		{"State syncs", summary.States},
	})
	t.Render()
}

// RoomBanner renders the created-room box with the ID to share.
func RoomBanner(roomID string) string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n\nShare this ID with your opponent.",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
	)
	return SuccessBoxStyle.Render(content)
}
