package rtc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hraban/opus"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/chadiek/interview-coach/internal/device"
)

// MicSampleRate is the rate remote microphone audio is decoded to.
const MicSampleRate = 16000

// Peer is the server side of one browser's WebRTC connection. Remote tracks
// are offered to a device hub as they arrive; interviewer audio goes out
// through Sink.
type Peer struct {
	pc    *webrtc.PeerConnection
	paced *OpusPacedWriter
	hub   *device.Hub
	log   *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
	doneOnce  sync.Once
}

// NewPeer prepares a PeerConnection with codecs, interceptors and an Opus
// sender track.
func NewPeer(hub *device.Hub, iceServers []webrtc.ICEServer, log *zap.Logger) (*Peer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	if len(iceServers) == 0 {
		iceServers = ParseICEServers("")
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	outTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"interviewer-audio", "interviewer",
	)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	if _, err := pc.AddTrack(outTrack); err != nil {
		_ = pc.Close()
		return nil, err
	}
	paced, err := NewOpusPacedWriter(outTrack)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	p := &Peer{pc: pc, paced: paced, hub: hub, log: log, done: make(chan struct{})}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Debug("peer connection state", zap.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			p.doneOnce.Do(func() { close(p.done) })
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Debug("ice state", zap.String("state", state.String()))
	})
	pc.OnTrack(p.onTrack)
	return p, nil
}

// Sink returns the writer that plays interviewer audio to the browser.
func (p *Peer) Sink() *OpusPacedWriter { return p.paced }

// Done is closed once the connection failed, disconnected or closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

// OnCandidate registers a callback for local ICE candidates. A nil
// candidate signals that gathering completed.
func (p *Peer) OnCandidate(fn func(*webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		cand := c.ToJSON()
		fn(&cand)
	})
}

// Answer applies the browser's offer and returns the local answer SDP.
// Candidates trickle through OnCandidate.
func (p *Peer) Answer(offerSDP string) (string, error) {
	if offerSDP == "" {
		return "", errors.New("empty offer")
	}
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		return "", err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	local := p.pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description")
	}
	return local.SDP, nil
}

// AddCandidate adds a remote trickle candidate.
func (p *Peer) AddCandidate(c webrtc.ICECandidateInit) error {
	if c.Candidate == "" {
		return nil
	}
	return p.pc.AddICECandidate(c)
}

// Close stops the audio writer and the connection.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.paced.Close()
		err = p.pc.Close()
		p.doneOnce.Do(func() { close(p.done) })
	})
	return err
}

func (p *Peer) onTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	log := p.log.With(zap.String("track_id", remote.ID()), zap.String("codec", remote.Codec().MimeType))
	switch remote.Kind() {
	case webrtc.RTPCodecTypeAudio:
		dec, err := opus.NewDecoder(MicSampleRate, 1)
		if err != nil {
			log.Error("opus decoder error", zap.Error(err))
			p.hub.Deny(device.Microphone, device.ErrUnavailable)
			return
		}
		mic := device.NewMicrophone(remote.ID(), MicSampleRate)
		p.hub.Offer(mic)
		log.Info("remote audio track received")
		go p.readAudio(remote, dec, mic, log)
	case webrtc.RTPCodecTypeVideo:
		cam := device.NewCamera(remote.ID())
		p.hub.Offer(cam)
		log.Info("remote video track received")
		go p.discardVideo(remote, cam)
	}
}

// readAudio decodes mic RTP into PCM16LE and feeds the microphone stream
// until the track ends.
func (p *Peer) readAudio(remote *webrtc.TrackRemote, dec *opus.Decoder, mic *device.MicrophoneStream, log *zap.Logger) {
	defer func() {
		p.hub.Withdraw(mic)
		mic.Close()
	}()
	samples := make([]int16, 1920)
	for {
		pkt, _, readErr := remote.ReadRTP()
		if readErr != nil {
			log.Debug("rtp read ended", zap.Error(readErr))
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, decErr := dec.Decode(pkt.Payload, samples)
		if decErr != nil {
			log.Debug("opus decode error", zap.Error(decErr))
			continue
		}
		out := make([]byte, n*2)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(samples[i]))
		}
		mic.Write(out)
	}
}

// discardVideo keeps the video receiver flowing. Frames are not recorded.
func (p *Peer) discardVideo(remote *webrtc.TrackRemote, cam *device.CameraStream) {
	defer p.hub.Withdraw(cam)
	for {
		if _, _, err := remote.ReadRTP(); err != nil {
			return
		}
	}
}

// ParseICEServers decodes a JSON list of ICE servers, falling back to a
// public STUN server.
func ParseICEServers(iceJSON string) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if err := json.Unmarshal([]byte(iceJSON), &servers); err == nil && len(servers) > 0 {
		return servers
	}
	return []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}
