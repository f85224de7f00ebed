package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// Peer wraps a Pion PeerConnection for one remote participant. Remote
// ICE candidates that arrive before the remote description are buffered
// and flushed once it is set, so candidate order on the wire does not
// matter.
type Peer struct {
	pc *pion.PeerConnection

	mu        sync.Mutex
	remoteSet bool
	pending   []pion.ICECandidateInit
	closed    bool
}

// NewPeer creates a PeerConnection with a bidirectional audio
// transceiver.
func NewPeer(iceServers []string) (*Peer, error) {
	var servers []pion.ICEServer
	for _, u := range iceServers {
		servers = append(servers, pion.ICEServer{URLs: []string{u}})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	return &Peer{pc: pc}, nil
}

// OnICECandidate registers the callback for locally discovered
// candidates. A nil candidate from Pion marks end of gathering and is
// filtered out.
func (p *Peer) OnICECandidate(send func(pion.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		send(c.ToJSON())
	})
}

func (p *Peer) OnConnectionStateChange(f func(pion.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

func (p *Peer) OnTrack(f func(*pion.TrackRemote, *pion.RTPReceiver)) {
	p.pc.OnTrack(f)
}

// AddTrack attaches a local outgoing track, e.g. the microphone.
func (p *Peer) AddTrack(track pion.TrackLocal) (*pion.RTPSender, error) {
	return p.pc.AddTrack(track)
}

// CreateOffer produces and installs the local offer.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

// HandleOffer installs the remote offer and returns the local answer.
func (p *Peer) HandleOffer(sdp string) (string, error) {
	if err := p.setRemote(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// HandleAnswer installs the remote answer on the offering side.
func (p *Peer) HandleAnswer(sdp string) error {
	return p.setRemote(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp})
}

func (p *Peer) setRemote(desc pion.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			slog.Warn("flush buffered candidate failed", "err", err)
		}
	}
	return nil
}

// AddCandidate applies a remote ICE candidate, buffering it when the
// remote description has not been installed yet.
func (p *Peer) AddCandidate(c pion.ICECandidateInit) error {
	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.pc.Close()
}
