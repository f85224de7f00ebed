package rtc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// SignalEnvelope is the negotiation cargo relayed between participants.
// The server never inspects it; both ends of a pair agree on this shape.
type SignalEnvelope struct {
	Type      string                 `json:"type"` // offer|answer|candidate
	SDP       string                 `json:"sdp,omitempty"`
	Candidate *pion.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	envOffer     = "offer"
	envAnswer    = "answer"
	envCandidate = "candidate"
)

// PeerTransport is the per-remote connection the orchestrator drives.
type PeerTransport interface {
	CreateOffer() (string, error)
	HandleOffer(sdp string) (string, error)
	HandleAnswer(sdp string) error
	AddCandidate(c pion.ICECandidateInit) error
	Close() error
}

// SignalSender forwards an envelope to one remote participant.
type SignalSender func(targetID string, env SignalEnvelope) error

// Orchestrator owns one PeerTransport per remote participant and runs
// the offer/answer handshake for each pair. Exactly one side initiates:
// the participant whose id sorts lower sends the offer, so a pair never
// produces two colliding offers.
type Orchestrator struct {
	localID string
	send    SignalSender
	newPeer func(remoteID string) (PeerTransport, error)

	mu    sync.Mutex
	peers map[string]PeerTransport
}

// NewOrchestrator builds an orchestrator. newPeer is called once per
// remote participant and receives that participant's id, so the caller
// can route locally gathered candidates back through SendCandidate.
func NewOrchestrator(localID string, send SignalSender, newPeer func(remoteID string) (PeerTransport, error)) *Orchestrator {
	return &Orchestrator{
		localID: localID,
		send:    send,
		newPeer: newPeer,
		peers:   make(map[string]PeerTransport),
	}
}

// Initiates reports whether the local participant offers first toward
// remoteID.
func (o *Orchestrator) Initiates(remoteID string) bool {
	return o.localID < remoteID
}

// PeerJoined reacts to a new remote participant. The initiating side
// opens the connection and sends the offer; the other side waits for
// it.
func (o *Orchestrator) PeerJoined(remoteID string) error {
	if remoteID == o.localID || !o.Initiates(remoteID) {
		return nil
	}

	peer, fresh, err := o.ensurePeer(remoteID)
	if err != nil {
		return err
	}
	if !fresh {
		return nil // already negotiating
	}

	sdp, err := peer.CreateOffer()
	if err != nil {
		o.PeerLeft(remoteID)
		return fmt.Errorf("offer for %s: %w", remoteID, err)
	}
	return o.send(remoteID, SignalEnvelope{Type: envOffer, SDP: sdp})
}

// PeerLeft tears down the connection to a departed participant.
func (o *Orchestrator) PeerLeft(remoteID string) {
	o.mu.Lock()
	peer, ok := o.peers[remoteID]
	delete(o.peers, remoteID)
	o.mu.Unlock()

	if ok {
		_ = peer.Close()
	}
}

// HandleSignal applies an inbound envelope from remoteID.
func (o *Orchestrator) HandleSignal(remoteID string, cargo json.RawMessage) error {
	var env SignalEnvelope
	if err := json.Unmarshal(cargo, &env); err != nil {
		return fmt.Errorf("bad envelope from %s: %w", remoteID, err)
	}

	switch env.Type {
	case envOffer:
		peer, _, err := o.ensurePeer(remoteID)
		if err != nil {
			return err
		}
		answer, err := peer.HandleOffer(env.SDP)
		if err != nil {
			return fmt.Errorf("answer offer from %s: %w", remoteID, err)
		}
		return o.send(remoteID, SignalEnvelope{Type: envAnswer, SDP: answer})

	case envAnswer:
		peer, ok := o.peer(remoteID)
		if !ok {
			slog.Debug("answer for unknown peer", "remote", remoteID)
			return nil
		}
		return peer.HandleAnswer(env.SDP)

	case envCandidate:
		if env.Candidate == nil {
			return nil
		}
		peer, ok := o.peer(remoteID)
		if !ok {
			slog.Debug("candidate for unknown peer", "remote", remoteID)
			return nil
		}
		return peer.AddCandidate(*env.Candidate)

	default:
		return fmt.Errorf("unknown envelope type %q from %s", env.Type, remoteID)
	}
}

// SendCandidate forwards a locally gathered candidate to remoteID.
func (o *Orchestrator) SendCandidate(remoteID string, c pion.ICECandidateInit) error {
	return o.send(remoteID, SignalEnvelope{Type: envCandidate, Candidate: &c})
}

func (o *Orchestrator) ensurePeer(remoteID string) (PeerTransport, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if peer, ok := o.peers[remoteID]; ok {
		return peer, false, nil
	}
	peer, err := o.newPeer(remoteID)
	if err != nil {
		return nil, false, fmt.Errorf("peer for %s: %w", remoteID, err)
	}
	o.peers[remoteID] = peer
	return peer, true, nil
}

func (o *Orchestrator) peer(remoteID string) (PeerTransport, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.peers[remoteID]
	return p, ok
}

// Close tears down every peer connection.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	peers := o.peers
	o.peers = make(map[string]PeerTransport)
	o.mu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
}
