package cli

import (
	"fmt"
	"time"

	"github.com/duelink/duelink/internal/config"
	"github.com/duelink/duelink/internal/conflict"
	"github.com/duelink/duelink/internal/protocol"
	"github.com/duelink/duelink/internal/session"
	"github.com/duelink/duelink/internal/ui"
)

// presenceInterval paces the demo state snapshots sent while connected.
const presenceInterval = 2 * time.Second

// runSession drives one duel session: connect, enter a room (hosting or
// joining), negotiate the peer link, then relay events to the terminal
// until the session ends.
func runSession(cfg *config.Config, roomID string) error {
	coord := session.NewCoordinator(cfg, nil)
	go coord.Run()
	defer coord.Close()

	coord.Dispatch(session.Command{Type: session.CmdInit})
	if flagName != "" || flagLocation != "" {
		coord.Dispatch(session.Command{
			Type: session.CmdUpdatePlayerInfo,
			Info: &protocol.PlayerInfo{Name: flagName, Location: flagLocation},
		})
	}

	if roomID == "" {
		coord.Dispatch(session.Command{Type: session.CmdCreateRoom})
	} else {
		coord.Dispatch(session.Command{Type: session.CmdJoinRoom, RoomID: roomID})
	}

	spinner := ui.NewConnectionSpinner("Connecting to rendezvous server...")
	spinner.Start()
	defer func() { spinner.Stop() }()

	var (
		startedAt    time.Time
		sessionRoom  string
		peerName     string
		actionCount  int
		stateCount   int
		stopPresence chan struct{}
	)
	defer func() {
		if stopPresence != nil {
			close(stopPresence)
		}
	}()

	for ev := range coord.Events() {
		switch ev.Type {
		case session.EvtRoomCreated:
			sessionRoom = ev.RoomID
			spinner.Stop()
			fmt.Println(ui.RoomBanner(ev.RoomID))
			fmt.Println()
			spinner = ui.NewWaitingSpinner("Waiting for an opponent to join...")
			spinner.Start()

		case session.EvtRoomJoined:
			sessionRoom = ev.RoomID
			spinner.UpdateMessage("Joined room " + ev.RoomID + ", negotiating...")

		case session.EvtPlayerConnected:
			if ev.Player != nil {
				peerName = ev.Player.Name
			}
			spinner.UpdateMessage("Opponent found, negotiating peer link...")

		case session.EvtPeerChannelOpen:
			spinner.Success("Connected to opponent " + peerLabel(peerName, ev.PlayerID))
			startedAt = time.Now()
			stopPresence = startPresence(coord)

		case session.EvtActionReceived:
			actionCount++
			if ev.Action != nil {
				ui.PrintInfof("action from opponent: %s", ev.Action.Type)
			}

		case session.EvtStateReceived:
			stateCount++

		case session.EvtCombatRequestReceived:
			ui.PrintInfof("combat request %s from %s", ev.RequestID, ev.RequesterID)

		case session.EvtPlayerDisconnected:
			spinner.Stop()
			ui.PrintWarning("Opponent disconnected")
			coord.Dispatch(session.Command{Type: session.CmdLeaveRoom})
			printSummary(sessionRoom, peerName, startedAt, actionCount, stateCount)
			return nil

		case session.EvtError:
			if ev.Fatal {
				spinner.Stop()
				return ev.Err
			}
			ui.PrintWarning(ev.Err.Error())
		}
	}
	return nil
}

// startPresence periodically shares a small state snapshot so both sides
// exercise the sync path even when idle.
func startPresence(coord *session.Coordinator) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(presenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				now := time.Now().UnixMilli()
				payload := conflict.Structured(map[string]conflict.Value{
					"player": conflict.Structured(map[string]conflict.Value{
						"name": conflict.Text(flagName),
					}),
					"lastSeen": conflict.Number(float64(now)),
				})
				coord.Dispatch(session.Command{
					Type: session.CmdSyncState,
					State: &conflict.Snapshot{
						OwnerID:         coord.PlayerID(),
						Timestamp:       now,
						Payload:         payload,
						ConsistencyHash: conflict.PayloadHash(payload),
					},
				})
			}
		}
	}()
	return stop
}

func peerLabel(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func printSummary(roomID, peerName string, startedAt time.Time, actions, states int) {
	duration := "-"
	if !startedAt.IsZero() {
		duration = time.Since(startedAt).Round(time.Second).String()
	}
	fmt.Println()
	ui.RenderSessionSummary(ui.IconSwords+" Session Summary", ui.SessionSummary{
		RoomID:   roomID,
		PeerName: peerLabel(peerName, "unknown"),
		Duration: duration,
		Actions:  actions,
		States:   states,
	})
}
