package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/duelink/duelink/internal/ui"
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List open rooms on the rendezvous server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return listRooms(cfg.APIURL)
	},
}

type roomListResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Rooms   []struct {
		RoomID      string `json:"roomId"`
		ClientCount int    `json:"clientCount"`
		CreatedAt   int64  `json:"createdAt"`
	} `json:"rooms"`
}

func listRooms(apiURL string) error {
	body, err := json.Marshal(map[string]string{"action": "getRooms"})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(apiURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach rendezvous server: %w", err)
	}
	defer resp.Body.Close()

	var parsed roomListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode room listing: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("server rejected room listing: %s", parsed.Error)
	}

	rows := make([]ui.RoomRow, len(parsed.Rooms))
	for i, r := range parsed.Rooms {
		rows[i] = ui.RoomRow{
			RoomID:      r.RoomID,
			ClientCount: r.ClientCount,
			CreatedAt:   time.UnixMilli(r.CreatedAt),
		}
	}
	ui.RenderRoomTable(rows)
	return nil
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	addConnectionFlags(roomsCmd)
}
