// Headless room participant. Joins a room over the signaling WebSocket
// and negotiates an audio peer connection with every other participant.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Aklilu27/audiorooms/internal/rtc"
	"github.com/Aklilu27/audiorooms/internal/transport/ws"
	"github.com/Aklilu27/audiorooms/pkg/logger"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

func main() {
	var (
		serverURL  = flag.String("server", "ws://localhost:8080/ws", "signaling endpoint")
		roomID     = flag.String("room", "", "room id to join")
		userID     = flag.String("user", "", "user id (random when empty)")
		username   = flag.String("name", "guest", "display name")
		iceServers = flag.String("ice", "stun:stun.l.google.com:19302", "comma-separated STUN/TURN urls")
		debug      = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if *roomID == "" {
		log.Fatal("-room is required")
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}
	clientID := uuid.NewString()

	logger.Init(logger.Config{
		Service: "audiorooms-client",
		Backend: logger.BackendStd,
		Debug:   *debug,
	})

	p := &participant{
		roomID:   *roomID,
		userID:   *userID,
		clientID: clientID,
		username: *username,
		ice:      strings.Split(*iceServers, ","),
	}

	// peers pair by the per-tab participant id, not the account id, so
	// two tabs of the same account still negotiate with each other
	p.client = rtc.NewClient(*serverURL, p)
	p.orch = rtc.NewOrchestrator(clientID, p.sendEnvelope, p.newPeer)

	if err := p.client.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := p.client.Join(p.roomID, p.userID, p.clientID, p.username); err != nil {
		log.Fatalf("join: %v", err)
	}
	slog.Info("joined room", "room", p.roomID, "user", p.userID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = p.client.Leave(p.roomID, p.userID, p.clientID)
	p.orch.Close()
	p.client.Close()
	slog.Info("left room")
}

// participant wires the signaling client to the peer orchestrator.
type participant struct {
	roomID   string
	userID   string
	clientID string
	username string
	ice      []string

	client *rtc.Client
	orch   *rtc.Orchestrator
}

func (p *participant) sendEnvelope(targetID string, env rtc.SignalEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.client.SendSignal(targetID, raw)
}

func (p *participant) newPeer(remoteID string) (rtc.PeerTransport, error) {
	peer, err := rtc.NewPeer(p.ice)
	if err != nil {
		return nil, err
	}
	peer.OnICECandidate(func(c pion.ICECandidateInit) {
		if err := p.orch.SendCandidate(remoteID, c); err != nil {
			slog.Warn("send candidate failed", "to", remoteID, "err", err)
		}
	})
	peer.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Info("peer connection state", "remote", remoteID, "state", state.String())
	})
	return peer, nil
}

func (p *participant) OnRoomState(state ws.RoomStatePayload) {
	for _, u := range state.Users {
		if u.ParticipantID == p.clientID {
			continue
		}
		slog.Info("present", "participant", u.ParticipantID, "name", u.Username, "host", u.IsHost)
		if err := p.orch.PeerJoined(u.ParticipantID); err != nil {
			slog.Warn("negotiation failed", "participant", u.ParticipantID, "err", err)
		}
	}
}

func (p *participant) OnUserJoined(ev ws.PeerEventPayload) {
	slog.Info("user joined", "participant", ev.ParticipantID, "name", ev.Username)
	if err := p.orch.PeerJoined(ev.ParticipantID); err != nil {
		slog.Warn("negotiation failed", "participant", ev.ParticipantID, "err", err)
	}
}

func (p *participant) OnUserLeft(ev ws.PeerEventPayload) {
	slog.Info("user left", "participant", ev.ParticipantID, "name", ev.Username)
	p.orch.PeerLeft(ev.ParticipantID)
}

func (p *participant) OnSignal(fromParticipantID string, cargo json.RawMessage) {
	if err := p.orch.HandleSignal(fromParticipantID, cargo); err != nil {
		slog.Warn("signal handling failed", "from", fromParticipantID, "err", err)
	}
}

func (p *participant) OnChat(msg ws.ChatPayload) {
	slog.Info("chat", "from", msg.Username, "text", msg.Text)
}

func (p *participant) OnServerError(message string) {
	slog.Error("server rejected request", "message", message)
}
