package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/capture"
	"speaking-assessment-service/internal/domain"
)

type WSHandler struct {
	service   *app.SessionService
	validator *app.Validator
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewWSHandler(service *app.SessionService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service:   service,
		validator: app.NewValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the session use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel := domain.Selection{SessionID: q.Get("sessionId"), Unit: q.Get("unit"), Level: q.Get("level")}
	name := q.Get("name")
	if sel.SessionID == "" || sel.Unit == "" || sel.Level == "" || name == "" {
		http.Error(w, "missing sessionId, unit, level, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	log := h.log.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("session_id", sel.SessionID),
		zap.String("student", name),
	)

	tracker, err := h.service.Start(ctx, sel, name)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	c := &wsConn{
		h:       h,
		sel:     sel,
		name:    name,
		tracker: tracker,
		log:     log,
		send:    make(chan outboundMessage[any], 16),
		closing: make(chan struct{}),
	}
	c.speaker = wsSpeaker{c}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	ticks, cancelTicks := tracker.Timer().SubscribeTicks()

	progress := tracker.Progress()
	current, _ := tracker.Current()
	c.emit("joined", joinedPayload{
		Progress:    progress,
		Question:    viewOf(current, progress),
		RemainingMs: ms(tracker.Timer().Remaining()),
	})
	c.speakCurrent(ctx)

	// a resumed finished session has a stopped timer, so this reports the
	// result right after joined
	c.wg.Add(1)
	go c.forwardTicks(ticks)

	exited := false
	for !exited {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			c.handleAnswer(ctx, inbound.Payload)
		case "next":
			c.handleNext(ctx)
		case "captureStart":
			c.handleCaptureStart(ctx)
		case "captureStop":
			c.stopCapture()
		case "speechResult", "speechError", "speechEnd":
			c.handleSpeechEvent(inbound.Type, inbound.Payload)
		case "audioChunk":
			c.handleAudioChunk(inbound.Payload)
		case "ranking":
			c.handleRanking(ctx)
		case "exit":
			if err := h.service.Exit(ctx, sel.SessionID, name); err != nil {
				c.emitError(err)
			}
			c.emit("exited", struct{}{})
			exited = true
		default:
			c.emit("error", errorPayload{Message: "unsupported message type"})
		}
	}

	close(c.closing)
	c.stopCapture()
	cancelTicks()
	c.wg.Wait()
	if !exited {
		// disconnect counts as leaving; progress is kept for resume
		if err := h.service.Exit(context.Background(), sel.SessionID, name); err != nil {
			log.Warn("persist on disconnect", zap.Error(err))
		}
	}
	close(c.send)
	<-writerDone
}

// wsConn is the per-connection state. Goroutines other than the reader must
// be tracked by wg so send is only closed after they return.
type wsConn struct {
	h       *WSHandler
	sel     domain.Selection
	name    string
	tracker *app.ProgressTracker
	speaker capture.Speaker
	log     *zap.Logger

	send    chan outboundMessage[any]
	closing chan struct{}
	wg      sync.WaitGroup

	mu             sync.Mutex
	capture        *capture.Session
	recognizer     *remoteRecognizer
	recorder       *remoteRecorder
	lastTranscript string
}

func (c *wsConn) emit(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.closing:
	}
}

func (c *wsConn) emitError(err error) {
	c.emit("error", errorPayload{Message: err.Error(), Recoverable: domain.Recoverable(err)})
}

// forwardTicks relays the countdown and reports the final result once the
// timer stops because the session was finalized.
func (c *wsConn) forwardTicks(ticks <-chan time.Duration) {
	defer c.wg.Done()
	for remaining := range ticks {
		c.emit("tick", tickPayload{RemainingMs: ms(remaining)})
	}
	if result, ok := c.tracker.Result(); ok {
		c.emit("finished", result)
	}
}

func (c *wsConn) speakCurrent(ctx context.Context) {
	q, ok := c.tracker.Current()
	if !ok {
		return
	}
	if err := capture.SpeakPrompt(ctx, c.speaker, q); err != nil {
		c.log.Debug("speak prompt", zap.Error(err))
	}
}

func (c *wsConn) handleAnswer(ctx context.Context, raw json.RawMessage) {
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.emit("error", errorPayload{Message: "invalid answer payload"})
		return
	}
	q, ok := c.tracker.Current()
	if !ok {
		c.emitError(domain.ErrSessionFinalized)
		return
	}
	answer, err := answerFor(q, payload, c.takeTranscript())
	if err != nil {
		c.emitError(err)
		return
	}
	c.submit(ctx, answer)
}

func (c *wsConn) submit(ctx context.Context, answer domain.Answer) {
	outcome, err := c.h.service.Submit(ctx, c.sel.SessionID, c.name, answer)
	if err != nil {
		c.emitError(err)
		return
	}
	c.emit("verdict", outcome)
}

func (c *wsConn) handleNext(ctx context.Context) {
	step, err := c.h.service.Advance(ctx, c.sel.SessionID, c.name)
	if err != nil {
		c.emitError(err)
		return
	}
	if step.Done {
		return
	}
	c.emit("question", viewOf(step.Question, c.tracker.Progress()))
	c.speakCurrent(ctx)
}

func (c *wsConn) handleCaptureStart(ctx context.Context) {
	c.mu.Lock()
	if c.capture != nil {
		c.mu.Unlock()
		c.emit("error", errorPayload{Message: "capture already running"})
		return
	}
	rec, recorder := &remoteRecognizer{}, &remoteRecorder{}
	session := capture.NewSession(rec, recorder, c.log)
	if err := session.Start(ctx); err != nil {
		c.mu.Unlock()
		c.emitError(err)
		return
	}
	c.capture, c.recognizer, c.recorder = session, rec, recorder
	c.mu.Unlock()

	c.wg.Add(1)
	go c.awaitCapture(ctx, session)
}

func (c *wsConn) awaitCapture(ctx context.Context, session *capture.Session) {
	defer c.wg.Done()
	select {
	case <-session.Done():
	case <-c.closing:
		session.Stop()
		return
	}

	c.mu.Lock()
	if c.capture == session {
		c.capture, c.recognizer, c.recorder = nil, nil, nil
	}
	c.mu.Unlock()

	res := session.Result()
	if res.Err != nil {
		c.emitError(res.Err)
		return
	}

	payload := transcriptPayload{Transcript: res.Transcript}
	if res.Clip != nil {
		payload.ClipBytes, payload.MIMEType = len(res.Clip.Data), res.Clip.MIMEType
	}

	q, _ := c.tracker.Current()
	switch v := q.(type) {
	case domain.Recording:
		c.emit("transcript", payload)
		c.submit(ctx, domain.SpokenAnswer{Transcript: res.Transcript})
	case domain.SentenceRecording:
		c.setTranscript(res.Transcript)
		coverage := c.h.validator.Coverage(v.Sentence, res.Transcript)
		payload.Coverage, payload.Feedback = &coverage, app.CoverageFeedback(coverage)
		c.emit("transcript", payload)
	default:
		c.emit("transcript", payload)
	}
}

func (c *wsConn) stopCapture() {
	c.mu.Lock()
	session := c.capture
	c.mu.Unlock()
	if session != nil {
		session.Stop()
	}
}

func (c *wsConn) handleSpeechEvent(typ string, raw json.RawMessage) {
	var payload speechPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.emit("error", errorPayload{Message: "invalid speech payload"})
			return
		}
	}

	c.mu.Lock()
	rec := c.recognizer
	c.mu.Unlock()
	if rec == nil {
		return
	}
	events := rec.target()
	if events == nil {
		return
	}
	switch typ {
	case "speechResult":
		events.OnResult(payload.Transcript)
	case "speechError":
		events.OnError(speechError(payload.Code))
	case "speechEnd":
		events.OnEnd()
	}
}

func (c *wsConn) handleAudioChunk(raw json.RawMessage) {
	var payload audioPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.emit("error", errorPayload{Message: "invalid audio payload"})
		return
	}
	c.mu.Lock()
	recorder := c.recorder
	c.mu.Unlock()
	if recorder != nil {
		recorder.write(payload.Data, payload.MIMEType)
	}
}

func (c *wsConn) handleRanking(ctx context.Context) {
	snap, err := c.h.service.Ranking(ctx, c.sel.SessionID, c.name)
	if err != nil {
		c.emitError(err)
		return
	}
	c.emit("ranking", snap)
}

func (c *wsConn) setTranscript(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTranscript = t
}

func (c *wsConn) takeTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.lastTranscript
	c.lastTranscript = ""
	return t
}

// remoteRecognizer adapts recognition running in the browser. Events arrive
// as websocket messages and are dropped once the capture session stopped it.
type remoteRecognizer struct {
	mu      sync.Mutex
	events  capture.RecognitionEvents
	stopped bool
}

func (r *remoteRecognizer) Start(_ context.Context, events capture.RecognitionEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = events
	return nil
}

func (r *remoteRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func (r *remoteRecognizer) target() capture.RecognitionEvents {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	return r.events
}

// remoteRecorder collects the audio chunks the browser records during a
// capture. Chunks arriving after Stop are dropped.
type remoteRecorder struct {
	mu       sync.Mutex
	data     []byte
	mimeType string
	stopped  bool
}

func (r *remoteRecorder) Start(context.Context) error {
	return nil
}

func (r *remoteRecorder) write(chunk []byte, mimeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.data = append(r.data, chunk...)
	if mimeType != "" {
		r.mimeType = mimeType
	}
}

func (r *remoteRecorder) Stop() (capture.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return capture.Clip{Data: r.data, MIMEType: r.mimeType}, nil
}

// speechError maps Web Speech API error codes onto the error taxonomy.
func speechError(code string) error {
	switch code {
	case "no-speech", "aborted":
		return domain.ErrNoSpeech
	case "not-allowed":
		return domain.ErrPermissionDenied
	case "audio-capture", "service-not-allowed", "language-not-supported":
		return domain.ErrCapabilityUnavailable
	case "":
		return errors.New("speech recognition failed")
	}
	return errors.New("speech recognition failed: " + code)
}

// wsSpeaker forwards text-to-speech requests to the client.
type wsSpeaker struct {
	c *wsConn
}

func (s wsSpeaker) Speak(_ context.Context, text string) error {
	s.c.emit("speak", speakPayload{Text: text})
	return nil
}
