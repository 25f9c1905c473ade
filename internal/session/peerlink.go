package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/duelink/duelink/internal/config"
)

// dataChannelLabel names the single ordered channel carrying game traffic.
const dataChannelLabel = "game-data"

type linkEventType int

const (
	linkLocalCandidate linkEventType = iota
	linkChannelOpen
	linkChannelClosed
	linkFailed
	linkMessage
)

type linkEvent struct {
	typ       linkEventType
	remoteID  string
	candidate webrtc.ICECandidateInit
	data      []byte
	err       error
}

// peerLink wraps one peer connection to one remote participant. Methods are
// called from the coordinator goroutine; pion callbacks communicate back
// through the events channel. The channel field is the one spot both worlds
// touch: the responder binds it from pion's OnDataChannel goroutine while
// the coordinator reads it to send, so it sits behind its own lock.
type peerLink struct {
	remoteID  string
	initiator bool
	pc        *webrtc.PeerConnection
	events    chan<- linkEvent

	mu      sync.Mutex
	channel *webrtc.DataChannel

	// Remote candidates that arrived before the remote description; drained
	// in order once it is set.
	pendingRemote []webrtc.ICECandidateInit
}

func newPeerLink(cfg *config.Config, remoteID string, initiator bool, events chan<- linkEvent) (*peerLink, error) {
	iceServers := []webrtc.ICEServer{
		{URLs: cfg.GetSTUNServers()},
	}
	if turn := cfg.GetTURNServers(); len(turn) > 0 {
		user, pass := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   user,
			Credential: pass,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, WrapError("peer connection", err, remoteID)
	}

	link := &peerLink{
		remoteID:  remoteID,
		initiator: initiator,
		pc:        pc,
		events:    events,
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		link.post(linkEvent{
			typ:       linkLocalCandidate,
			remoteID:  remoteID,
			candidate: cand.ToJSON(),
		})
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		slog.Debug("ice connection state", "peer", remoteID, "state", state)
		switch state {
		case webrtc.ICEConnectionStateFailed,
			webrtc.ICEConnectionStateDisconnected,
			webrtc.ICEConnectionStateClosed:
			link.post(linkEvent{typ: linkFailed, remoteID: remoteID,
				err: NewError("ice", ErrPeerDisconnected)})
		}
	})

	if initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{
			Ordered: &ordered,
		})
		if err != nil {
			pc.Close()
			return nil, WrapError("data channel", err, remoteID)
		}
		link.bind(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			link.bind(dc)
		})
	}

	return link, nil
}

func (l *peerLink) bind(dc *webrtc.DataChannel) {
	l.mu.Lock()
	l.channel = dc
	l.mu.Unlock()
	dc.OnOpen(func() {
		l.post(linkEvent{typ: linkChannelOpen, remoteID: l.remoteID})
	})
	dc.OnClose(func() {
		l.post(linkEvent{typ: linkChannelClosed, remoteID: l.remoteID})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.post(linkEvent{typ: linkMessage, remoteID: l.remoteID, data: msg.Data})
	})
}

// post never blocks a pion callback goroutine; an overflowing coordinator
// drops the event instead.
func (l *peerLink) post(ev linkEvent) {
	select {
	case l.events <- ev:
	default:
		slog.Warn("link event dropped", "peer", l.remoteID, "type", ev.typ)
	}
}

// createOffer produces the local offer SDP for the initiating side.
func (l *peerLink) createOffer() (json.RawMessage, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return nil, WrapError("create offer", err, l.remoteID)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return nil, WrapError("set local description", err, l.remoteID)
	}
	return json.Marshal(l.pc.LocalDescription())
}

// acceptOffer applies a remote offer and produces the answer SDP.
func (l *peerLink) acceptOffer(raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, WrapError("decode offer", err, l.remoteID)
	}
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return nil, WrapError("set remote description", err, l.remoteID)
	}
	l.drainPending()

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return nil, WrapError("create answer", err, l.remoteID)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return nil, WrapError("set local description", err, l.remoteID)
	}
	return json.Marshal(l.pc.LocalDescription())
}

// acceptAnswer applies the remote answer on the initiating side.
func (l *peerLink) acceptAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return WrapError("decode answer", err, l.remoteID)
	}
	if err := l.pc.SetRemoteDescription(answer); err != nil {
		return WrapError("set remote description", err, l.remoteID)
	}
	l.drainPending()
	return nil
}

// addCandidate applies a remote ICE candidate, deferring it until the
// remote description is in place.
func (l *peerLink) addCandidate(raw json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand); err != nil {
		return WrapError("decode candidate", err, l.remoteID)
	}
	if l.pc.RemoteDescription() == nil {
		l.pendingRemote = append(l.pendingRemote, cand)
		return nil
	}
	return l.pc.AddICECandidate(cand)
}

func (l *peerLink) drainPending() {
	for _, cand := range l.pendingRemote {
		if err := l.pc.AddICECandidate(cand); err != nil {
			slog.Warn("failed to add buffered candidate",
				"peer", l.remoteID, "error", err)
		}
	}
	l.pendingRemote = nil
}

// sendData writes one encoded message over the data channel.
func (l *peerLink) sendData(data []byte) error {
	l.mu.Lock()
	dc := l.channel
	l.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return dc.Send(data)
}

func (l *peerLink) close() {
	l.mu.Lock()
	dc := l.channel
	l.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	l.pc.Close()
}
