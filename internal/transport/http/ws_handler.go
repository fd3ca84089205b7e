package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"medcase-engine/internal/app"
	"medcase-engine/internal/domain"
)

// WSHandler drives assessment sessions over a websocket. One connection serves
// either a single-case review flow (caseId query param) or an event run
// (eventId query param).
type WSHandler struct {
	engine   *app.Engine
	tracker  *app.ProgressTracker
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, tracker *app.ProgressTracker, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		engine:  engine,
		tracker: tracker,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type optionPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type confidencePayload struct {
	// Percent is the UI's 0-100 integer scale; it is normalized to the
	// engine's [0,1] fraction here at the boundary and nowhere else.
	Percent int `json:"percent"`
}

type sessionPayload struct {
	SessionID  string                     `json:"sessionId"`
	CaseID     string                     `json:"caseId"`
	Review     bool                       `json:"review"`
	Options    [domain.OptionCount]string `json:"options"`
	Eliminated []int                      `json:"eliminated"`
}

type eliminatedPayload struct {
	OptionIndex int `json:"optionIndex"`
	Remaining   int `json:"remaining"`
}

type hintPayload struct {
	Text    string `json:"text"`
	Pending bool   `json:"pending"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// assessment use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	caseID := r.URL.Query().Get("caseId")
	eventID := r.URL.Query().Get("eventId")
	if userID == "" || (caseID == "" && eventID == "") {
		http.Error(w, "missing userId and one of caseId or eventId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	// send stays open for the connection's whole life; the writer exits on
	// done so a late hint result can never hit a closed channel.
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Warn("ws write error", "err", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	conv := &conversation{
		handler: h,
		send:    send,
		done:    done,
		userID:  userID,
		eventID: eventID,
	}

	ctx := r.Context()
	if eventID != "" {
		conv.startEvent(ctx)
	} else {
		conv.openCase(ctx, caseID)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		conv.dispatch(ctx, inbound)
	}

	close(done)
	if conv.sessionID != "" {
		h.engine.CloseSession(conv.sessionID)
	}
	<-writerDone
}

// conversation carries per-connection state across messages.
type conversation struct {
	handler   *WSHandler
	send      chan outboundMessage[any]
	done      chan struct{}
	userID    string
	eventID   string
	sessionID string
	caseOpen  time.Time
}

func (c *conversation) dispatch(ctx context.Context, inbound inboundMessage) {
	switch inbound.Type {
	case "select":
		var payload optionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid select payload"))
			return
		}
		c.selectOption(payload.OptionIndex)
	case "confidence":
		var payload confidencePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid confidence payload"))
			return
		}
		c.setConfidence(payload.Percent)
	case "eliminate":
		c.eliminate(ctx)
	case "hint":
		c.hint(ctx)
	case "submit":
		var payload optionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.fail(errors.New("invalid submit payload"))
			return
		}
		c.submit(ctx, payload.OptionIndex)
	case "skip":
		c.skip(ctx)
	case "next":
		c.next(ctx)
	case "finish":
		c.finish(ctx)
	case "balance":
		c.balance(ctx)
	default:
		c.fail(errors.New("unsupported message type"))
	}
}

func (c *conversation) startEvent(ctx context.Context) {
	participation, err := c.handler.tracker.Start(ctx, c.eventID, c.userID)
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "participation", Payload: participation})
	c.next(ctx)
}

func (c *conversation) next(ctx context.Context) {
	if c.eventID == "" {
		c.fail(domain.ErrEventNotFound)
		return
	}
	caseID, ok, err := c.handler.tracker.CurrentCaseID(ctx, c.eventID, c.userID)
	if err != nil {
		c.fail(err)
		return
	}
	if !ok {
		c.emit(outboundMessage[any]{Type: "eventDone", Payload: struct{}{}})
		return
	}
	c.openCase(ctx, caseID)
}

func (c *conversation) openCase(ctx context.Context, caseID string) {
	// Sessions are per case presentation; a finished one is discarded as soon
	// as the run moves on, or it would sit in the registry until shutdown.
	if c.sessionID != "" {
		c.handler.engine.CloseSession(c.sessionID)
		c.sessionID = ""
	}

	session, err := c.handler.engine.OpenSession(ctx, c.userID, caseID)
	if err != nil {
		c.fail(err)
		return
	}
	c.sessionID = session.ID()
	c.caseOpen = time.Now()

	// The correct index never crosses the wire before Feedback.
	c.emit(outboundMessage[any]{Type: "session", Payload: sessionPayload{
		SessionID:  session.ID(),
		CaseID:     session.CaseID(),
		Review:     session.IsReview(),
		Options:    session.Options(),
		Eliminated: session.EliminatedOptions(),
	}})
}

func (c *conversation) selectOption(idx int) {
	session, err := c.handler.engine.Session(c.sessionID)
	if err != nil {
		c.fail(err)
		return
	}
	if err := session.SelectOption(idx); err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "selected", Payload: optionPayload{OptionIndex: idx}})
}

func (c *conversation) setConfidence(percent int) {
	session, err := c.handler.engine.Session(c.sessionID)
	if err != nil {
		c.fail(err)
		return
	}
	if err := session.SetConfidence(float64(percent) / 100); err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "confidenceSet", Payload: confidencePayload{Percent: percent}})
}

func (c *conversation) eliminate(ctx context.Context) {
	idx, remaining, err := c.handler.engine.RequestElimination(ctx, c.sessionID)
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "eliminated", Payload: eliminatedPayload{OptionIndex: idx, Remaining: remaining}})
}

// hint runs the gateway call off the read loop so the client stays responsive.
// The goroutine deliberately detaches from the request context: a client
// navigating away simply abandons the result.
func (c *conversation) hint(_ context.Context) {
	sessionID := c.sessionID
	c.emit(outboundMessage[any]{Type: "hint", Payload: hintPayload{Pending: true}})

	go func() {
		hintCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		text, err := c.handler.engine.RequestHint(hintCtx, sessionID)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit(outboundMessage[any]{Type: "hint", Payload: hintPayload{Text: text}})
	}()
}

func (c *conversation) submit(ctx context.Context, idx int) {
	result, err := c.handler.engine.Submit(ctx, c.sessionID, idx)
	if err != nil {
		c.fail(err)
		return
	}
	c.sendResult(ctx, result)
}

func (c *conversation) skip(ctx context.Context) {
	result, err := c.handler.engine.Skip(ctx, c.sessionID)
	if err != nil {
		c.fail(err)
		return
	}
	c.sendResult(ctx, result)
}

func (c *conversation) sendResult(ctx context.Context, result domain.CaseResult) {
	c.emit(outboundMessage[any]{Type: "caseResult", Payload: result})

	if c.eventID == "" {
		return
	}
	progress, err := c.handler.tracker.RecordCaseResult(ctx, c.eventID, c.userID, result, time.Since(c.caseOpen))
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "progress", Payload: progress})

	ranking, err := c.handler.tracker.Leaderboard(ctx, c.eventID, 10)
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "ranking", Payload: ranking})
}

func (c *conversation) finish(ctx context.Context) {
	if c.eventID == "" {
		c.fail(domain.ErrEventNotFound)
		return
	}
	participation, err := c.handler.tracker.Finish(ctx, c.eventID, c.userID)
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "participation", Payload: participation})
}

func (c *conversation) balance(ctx context.Context) {
	balance, err := c.handler.engine.Balance(ctx, c.userID)
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(outboundMessage[any]{Type: "balance", Payload: balance})
}

func (c *conversation) fail(err error) {
	c.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}})
}

// emit queues a message for the writer goroutine. After the connection winds
// down (done closed) messages are dropped, which is how an abandoned hint
// result dies quietly.
func (c *conversation) emit(msg outboundMessage[any]) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// errorCode maps engine errors onto stable client-facing codes. Credit
// exhaustion is a normal outcome the UI disables buttons over, not a fault.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrReviewMode):
		return "review_mode"
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrNoEliminationTargets):
		return "no_elimination_targets"
	case errors.Is(err, domain.ErrEventIncomplete):
		return "event_incomplete"
	case errors.Is(err, domain.ErrCaseNotFound),
		errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrParticipationNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
