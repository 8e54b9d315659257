// Package pion implements the client's Peer port on pion/webrtc. Offers and
// answers are exchanged non-trickle: local descriptions are returned only
// after ICE gathering completes, so each side needs exactly one payload.
package pion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/quickchat/quickchat/internal/client"
)

type Config struct {
	STUNServers []string
	// Tracks to publish on the connection. When empty, recvonly
	// transceivers are added so the offer still carries audio and video
	// sections.
	Tracks []webrtc.TrackLocal
}

// NewFactory returns a client.PeerFactory producing one connection per call
// attempt.
func NewFactory(cfg Config) client.PeerFactory {
	return func() (client.Peer, error) {
		return newPeer(cfg)
	}
}

type Peer struct {
	pc *webrtc.PeerConnection
}

func newPeer(cfg Config) (*Peer, error) {
	var conf webrtc.Configuration
	if len(cfg.STUNServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}
	pc, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	if len(cfg.Tracks) == 0 {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return nil, err
			}
		}
	}
	for _, track := range cfg.Tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, err
		}
	}

	return &Peer{pc: pc}, nil
}

func (p *Peer) Offer(ctx context.Context) (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return p.localDescription(ctx, offer)
}

func (p *Peer) Answer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(offer, &remote); err != nil {
		return nil, fmt.Errorf("decode remote offer: %w", err)
	}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return p.localDescription(ctx, answer)
}

func (p *Peer) AcceptAnswer(answer json.RawMessage) error {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(answer, &remote); err != nil {
		return fmt.Errorf("decode remote answer: %w", err)
	}
	return p.pc.SetRemoteDescription(remote)
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

// localDescription applies sd, waits for gathering, and returns the final
// description as an opaque payload.
func (p *Peer) localDescription(ctx context.Context, sd webrtc.SessionDescription) (json.RawMessage, error) {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(sd); err != nil {
		return nil, err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(p.pc.LocalDescription())
}
