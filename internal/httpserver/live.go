package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/chadiek/interview-coach/internal/device"
	"github.com/chadiek/interview-coach/internal/interview"
	"github.com/chadiek/interview-coach/internal/rtc"
)

// liveMessage is the envelope for every frame on the live channel.
//
// Inbound types: offer, candidate, device, start, begin-speaking,
// stop-speaking, mute, unmute, camera, pause, resume, retry, end, bye.
// Outbound types: answer, candidate, ice-complete, state, level, release,
// error.
type liveMessage struct {
	Type string `json:"type"`
	// offer/answer
	SDP string `json:"sdp,omitempty"`
	// candidate
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	// device, release
	Kind    string `json:"kind,omitempty"`
	Granted *bool  `json:"granted,omitempty"`
	// end
	Feedback *string  `json:"feedback,omitempty"`
	Score    *float64 `json:"score,omitempty"`

	Level *float64            `json:"level,omitempty"`
	State *interview.Snapshot `json:"state,omitempty"`
	Op    string              `json:"op,omitempty"`
	Error string              `json:"error,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 5 * time.Second
	endTimeout = 10 * time.Second
)

// liveConn serializes writes; gorilla allows one concurrent writer.
type liveConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (l *liveConn) send(m liveMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteJSON(m)
}

func (l *liveConn) sendError(op string, err error) {
	_ = l.send(liveMessage{Type: "error", Op: op, Error: err.Error()})
}

func (s *Server) live(c echo.Context) error {
	id := c.Param("id")
	sess, err := s.deps.Store.Get(c.Request().Context(), id)
	if err != nil {
		s.log.Error("get session failed", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load session")
	}
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if sess.Status == interview.StatusCompleted {
		return echo.NewHTTPError(http.StatusConflict, "session already completed")
	}

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("ws upgrade error", zap.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	requester := interview.Requester{ID: sess.RequesterID, DisplayName: c.QueryParam("name")}
	s.runLive(&liveConn{conn: conn}, id, requester)
	return nil
}

// runLive wires one browser connection to a Coordinator until the socket
// closes or the peer connection fails.
func (s *Server) runLive(lc *liveConn, sessionID string, requester interview.Requester) {
	log := s.log.With(zap.String("session_id", sessionID))
	cfg := s.deps.Live

	hub := device.NewHub(cfg.AcquireTimeout)
	hub.OnRelease(func(kind device.Kind) {
		_ = lc.send(liveMessage{Type: "release", Kind: string(kind)})
	})

	peer, err := rtc.NewPeer(hub, cfg.ICEServers, log)
	if err != nil {
		log.Error("create peer failed", zap.Error(err))
		lc.sendError("connect", err)
		return
	}
	defer func() { _ = peer.Close() }()
	peer.OnCandidate(func(cand *webrtc.ICECandidateInit) {
		if cand == nil {
			_ = lc.send(liveMessage{Type: "ice-complete"})
			return
		}
		_ = lc.send(liveMessage{Type: "candidate", Candidate: cand.Candidate, SDPMid: cand.SDPMid, SDPMLineIndex: cand.SDPMLineIndex})
	})

	var voice interview.Synthesizer = silence{}
	if s.deps.Voice != nil {
		voice = s.deps.Voice(peer.Sink())
	}

	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord, err := interview.New(connCtx, interview.Deps{
		Store:       s.deps.Store,
		Devices:     hub,
		Transcriber: s.deps.Transcriber,
		Generator:   s.deps.Generator,
		Synthesizer: voice,
		Archive:     s.deps.Archive,
		Logger:      log,
		OnChange: func(snap interview.Snapshot) {
			_ = lc.send(liveMessage{Type: "state", State: &snap})
		},
		OnLevel: func(level float64) {
			_ = lc.send(liveMessage{Type: "level", Level: &level})
		},
	}, cfg.Interview, sessionID, requester)
	if err != nil {
		log.Warn("open session failed", zap.Error(err))
		lc.sendError("connect", err)
		return
	}
	snap := coord.Snapshot()
	_ = lc.send(liveMessage{Type: "state", State: &snap})

	var wg sync.WaitGroup
	defer func() {
		cancel()
		closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := coord.Close(closeCtx); err != nil {
			log.Warn("final save failed", zap.Error(err))
		}
		wg.Wait()
	}()
	async := func(op string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(connCtx); err != nil {
				log.Debug("control failed", zap.String("op", op), zap.Error(err))
				lc.sendError(op, err)
			}
		}()
	}

	msgs := make(chan liveMessage)
	go func() {
		defer close(msgs)
		for {
			mt, data, err := lc.conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var m liveMessage
			if err := json.Unmarshal(data, &m); err != nil {
				lc.sendError("decode", err)
				continue
			}
			select {
			case msgs <- m:
			case <-connCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-peer.Done():
			log.Info("peer connection ended")
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if done := s.dispatch(lc, peer, hub, coord, async, m, log); done {
				return
			}
		}
	}
}

func (s *Server) dispatch(lc *liveConn, peer *rtc.Peer, hub *device.Hub, coord *interview.Coordinator,
	async func(string, func(context.Context) error), m liveMessage, log *zap.Logger) bool {
	op := strings.ToLower(m.Type)
	switch op {
	case "offer":
		sdp, err := peer.Answer(m.SDP)
		if err != nil {
			log.Warn("answer failed", zap.Error(err))
			lc.sendError(op, err)
			return false
		}
		_ = lc.send(liveMessage{Type: "answer", SDP: sdp})
	case "candidate":
		if err := peer.AddCandidate(webrtc.ICECandidateInit{Candidate: m.Candidate, SDPMid: m.SDPMid, SDPMLineIndex: m.SDPMLineIndex}); err != nil {
			lc.sendError(op, err)
		}
	case "device":
		kind := device.Kind(m.Kind)
		if kind != device.Microphone && kind != device.Camera {
			lc.sendError(op, errors.New("unknown device kind"))
			return false
		}
		if m.Granted != nil && !*m.Granted {
			hub.Deny(kind, device.ErrPermissionDenied)
		}
	case "start":
		async(op, coord.Start)
	case "begin-speaking":
		if err := coord.BeginSpeaking(); err != nil {
			lc.sendError(op, err)
		}
	case "stop-speaking":
		async(op, coord.StopSpeaking)
	case "mute", "unmute":
		if err := coord.SetMuted(op == "mute"); err != nil {
			lc.sendError(op, err)
		}
	case "camera":
		async(op, coord.ToggleCamera)
	case "pause":
		async(op, coord.Pause)
	case "resume":
		async(op, coord.Resume)
	case "retry":
		async(op, coord.Retry)
	case "end":
		comp := interview.Completion{Feedback: m.Feedback, Score: m.Score}
		async(op, func(ctx context.Context) error {
			// The completion write outlives a client that hangs up right after ending.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endTimeout)
			defer cancel()
			return coord.End(ctx, comp)
		})
	case "bye":
		return true
	default:
		lc.sendError(op, errors.New("unknown message type"))
	}
	return false
}

// silence plays nothing; used when no synthesizer is configured.
type silence struct{}

func (silence) Speak(ctx context.Context, text string) error { return ctx.Err() }
