package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/usecase"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultSessionTimeout    = 2 * time.Minute
)

// Gateway is the realtime entry point of the coordinator. It upgrades
// HTTP requests to websocket connections, authenticates them, and routes
// commands to the usecases while fanning events out per release room.
type Gateway struct {
	uc       *usecase.UseCases
	hub      *Hub
	registry *Registry
	upgrader websocket.Upgrader

	heartbeatInterval time.Duration
	sessionTimeout    time.Duration
}

type GatewayOption func(*Gateway)

// WithSessionTimings overrides the liveness sweep interval and the
// session expiry timeout
func WithSessionTimings(interval, timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.heartbeatInterval = interval
		g.sessionTimeout = timeout
	}
}

func New(uc *usecase.UseCases, hub *Hub, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		uc:  uc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients ship the dashboard UI from the same origin;
			// non-browser test harnesses send no Origin header at all.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		heartbeatInterval: defaultHeartbeatInterval,
		sessionTimeout:    defaultSessionTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.registry = NewRegistry(g.heartbeatInterval, g.sessionTimeout, func(ctx context.Context, c *Client) {
		g.expireClient(ctx, c)
	})

	return g
}

// Registry exposes the session registry so the server can start and stop
// its liveness sweeper alongside the other workers
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// ServeHTTP upgrades the request and runs the connection until it dies.
// A request with a bad credential is upgraded and then closed without an
// error event, so probing the endpoint reveals nothing.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenID, secret := extractCredential(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.From(ctx).Warn("websocket upgrade failed", "error", err)
		return
	}

	token, err := g.uc.Auth.ValidateToken(ctx, tokenID, secret)
	if err != nil {
		logging.From(ctx).Warn("websocket auth rejected", "token_id", tokenID)
		_ = conn.Close()
		return
	}

	client := newClient(conn, g, token)
	g.registry.Track(client)

	logging.From(ctx).Info("websocket connected", "tester_id", client.TesterID())

	go client.writePump()
	// The read pump runs on the request goroutine and keeps the
	// connection's context alive until disconnect.
	client.readPump(context.WithoutCancel(ctx))
}

// extractCredential reads "<token-id>:<secret>" from the Authorization
// bearer header, falling back to the token query parameter for browser
// websocket clients that cannot set headers.
func extractCredential(r *http.Request) (auth.TokenID, auth.TokenSecret) {
	raw := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	} else {
		raw = r.URL.Query().Get("token")
	}

	id, secret, ok := strings.Cut(raw, ":")
	if !ok {
		return auth.TokenID(raw), ""
	}
	return auth.TokenID(id), auth.TokenSecret(secret)
}

// handleCommand dispatches one client command. Errors are reported to the
// issuing client only; the connection and the rest of the room are never
// affected.
func (g *Gateway) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	g.registry.Touch(c)

	var err error
	switch cmd.Type {
	case CommandHeartbeat:
		// Touch above is the whole job

	case CommandJoinSession:
		err = g.handleJoin(ctx, c, cmd.Payload)

	case CommandLeaveSession:
		err = g.handleLeave(ctx, c)

	case CommandRequestWork:
		err = g.handleRequestWork(ctx, c)

	case CommandUpdateStep:
		err = g.handleUpdateStep(ctx, c, cmd.Payload)

	case CommandSubmitResult:
		err = g.handleSubmitResult(ctx, c, cmd.Payload)

	default:
		err = goerr.Wrap(types.ErrBadRequest, "unknown command", goerr.V("command", cmd.Type))
	}

	if err != nil {
		logging.From(ctx).Warn("command failed",
			"command", cmd.Type,
			"tester_id", c.TesterID(),
			"error", err)
		c.sendError(ctx, err)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, payload json.RawMessage) error {
	var p joinSessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return goerr.Wrap(types.ErrBadRequest, "invalid join-session payload")
	}

	if _, err := g.uc.Session.JoinRelease(ctx, p.ReleaseID, c.TesterID()); err != nil {
		return err
	}

	if !c.setJoined(p.ReleaseID) {
		return goerr.Wrap(types.ErrConflict, "already in a session")
	}
	g.hub.Join(p.ReleaseID, c)

	// The whole room hears about the arrival, the joiner included
	g.hub.Broadcast(ctx, p.ReleaseID, &Event{
		Type: EventTesterJoined,
		Payload: testerPresencePayload{
			TesterID: c.TesterID(),
			Name:     c.token.Name,
		},
	})

	// The joiner gets the current dashboard so it can render immediately
	dashboard, err := g.uc.Dashboard.FindLatestByRelease(ctx, p.ReleaseID)
	if err != nil {
		return err
	}
	c.sendEvent(ctx, &Event{Type: EventDashboardUpdate, Payload: dashboard})

	return nil
}

func (g *Gateway) handleLeave(ctx context.Context, c *Client) error {
	releaseID := c.setLeft()
	if releaseID == "" {
		return goerr.Wrap(types.ErrConflict, "not in a session")
	}

	g.hub.Leave(releaseID, c)
	g.cleanupAndNotify(ctx, releaseID, c.TesterID(), "left")
	return nil
}

func (g *Gateway) handleRequestWork(ctx context.Context, c *Client) error {
	if !c.joined() {
		return goerr.Wrap(types.ErrConflict, "join a session first")
	}
	releaseID := c.ReleaseID()

	assigned, err := g.uc.Assignment.AssignStory(ctx, releaseID, c.TesterID())
	if err != nil {
		return err
	}
	if assigned == nil {
		c.sendEvent(ctx, &Event{Type: EventPoolEmpty})
		return nil
	}

	c.sendEvent(ctx, &Event{
		Type: EventStoryAssigned,
		Payload: storyAssignedPayload{
			Execution: assigned.Execution,
			Story:     assigned.Story,
		},
	})

	// The room hears in-progress explicitly. The dashboard aggregate keeps
	// showing the latest finalized attempt during a retry, so deriving the
	// status from it here would announce the old verdict instead.
	g.hub.Broadcast(ctx, releaseID, &Event{
		Type: EventStatusChanged,
		Payload: statusChangedPayload{
			StoryID:  assigned.Story.ID,
			Status:   types.StoryStatusInProgress,
			Attempt:  assigned.Execution.Attempt,
			TesterID: c.TesterID(),
		},
	})
	g.broadcastDashboard(ctx, releaseID)
	return nil
}

func (g *Gateway) handleUpdateStep(ctx context.Context, c *Client, payload json.RawMessage) error {
	if !c.joined() {
		return goerr.Wrap(types.ErrConflict, "join a session first")
	}

	var p updateStepPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return goerr.Wrap(types.ErrBadRequest, "invalid update-step payload")
	}

	exec, result, err := g.uc.Recorder.UpdateStep(ctx, p.ExecutionID, p.StepID, p.Status, p.Comment, c.TesterID())
	if err != nil {
		return err
	}

	// Step progress concerns only the tester working the story
	c.sendEvent(ctx, &Event{
		Type: EventStepUpdated,
		Payload: stepUpdatedPayload{
			ExecutionID: p.ExecutionID,
			StoryID:     exec.StoryID,
			StepID:      result.StepID,
			Status:      result.Status,
			TesterID:    c.TesterID(),
		},
	})
	return nil
}

func (g *Gateway) handleSubmitResult(ctx context.Context, c *Client, payload json.RawMessage) error {
	if !c.joined() {
		return goerr.Wrap(types.ErrConflict, "join a session first")
	}

	var p submitResultPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return goerr.Wrap(types.ErrBadRequest, "invalid submit-result payload")
	}

	var bug *model.BugReport
	if p.Bug != nil {
		bug = &model.BugReport{
			Title:       p.Bug.Title,
			Description: p.Bug.Description,
		}
	}

	finalized, err := g.uc.Recorder.SubmitResult(ctx, p.ExecutionID, p.Status, p.Comment, c.TesterID(), bug)
	if err != nil {
		return err
	}

	releaseID := c.ReleaseID()
	c.sendEvent(ctx, &Event{
		Type: EventResultSubmitted,
		Payload: resultSubmittedPayload{
			ExecutionID: finalized.ID,
			StoryID:     finalized.StoryID,
			Status:      finalized.Status,
			Attempt:     finalized.Attempt,
			TesterID:    finalized.TesterID,
		},
	})

	g.broadcastStoryState(ctx, releaseID, finalized.StoryID)
	return nil
}

// handleDisconnect tears down a connection: release the tester's story,
// notify the room and forget the session. Safe to call more than once.
func (g *Gateway) handleDisconnect(ctx context.Context, c *Client, reason string) {
	g.registry.Forget(c)
	releaseID := c.setClosed()
	// Leave the room before signalling the write pump so a concurrent
	// broadcast never targets a connection that is shutting down.
	if releaseID != "" {
		g.hub.Leave(releaseID, c)
	}
	c.close()

	if releaseID == "" {
		return
	}

	logging.From(ctx).Info("websocket disconnected",
		"tester_id", c.TesterID(),
		"release_id", releaseID,
		"reason", reason)

	g.cleanupAndNotify(ctx, releaseID, c.TesterID(), reason)
}

// expireClient is the liveness sweeper's callback for clients that
// stopped heartbeating
func (g *Gateway) expireClient(ctx context.Context, c *Client) {
	g.handleDisconnect(ctx, c, "timeout")
}

// cleanupAndNotify releases the tester's in-progress story, if any, and
// tells the room who left and what changed
func (g *Gateway) cleanupAndNotify(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID, reason string) {
	storyID, err := g.uc.Assignment.CleanupTester(ctx, releaseID, testerID)
	if err != nil {
		logging.From(ctx).Error("tester cleanup failed",
			"release_id", releaseID,
			"tester_id", testerID,
			"error", err)
	}

	g.hub.Broadcast(ctx, releaseID, &Event{
		Type: EventTesterLeft,
		Payload: testerPresencePayload{
			TesterID:        testerID,
			Reason:          reason,
			UnlockedStoryID: storyID,
		},
	})

	if storyID != "" {
		g.broadcastStoryState(ctx, releaseID, storyID)
	}
}

// broadcastStoryState recomputes the dashboard and pushes the story's
// current status plus the refreshed dashboard to the room. Used on the
// finalize and cleanup paths, where the aggregate is the source of truth
// for the story's new status.
func (g *Gateway) broadcastStoryState(ctx context.Context, releaseID types.ReleaseID, storyID types.StoryID) {
	dashboard, err := g.uc.Dashboard.FindLatestByRelease(ctx, releaseID)
	if err != nil {
		logging.From(ctx).Error("failed to build dashboard for broadcast",
			"release_id", releaseID, "error", err)
		return
	}

	for _, entry := range dashboard.Stories {
		if entry.StoryID != storyID {
			continue
		}
		g.hub.Broadcast(ctx, releaseID, &Event{
			Type: EventStatusChanged,
			Payload: statusChangedPayload{
				StoryID:  entry.StoryID,
				Status:   entry.Status,
				Attempt:  entry.Attempt,
				TesterID: entry.TesterID,
			},
		})
		break
	}

	g.hub.Broadcast(ctx, releaseID, &Event{Type: EventDashboardUpdate, Payload: dashboard})
}

// broadcastDashboard pushes a freshly computed dashboard to the room
func (g *Gateway) broadcastDashboard(ctx context.Context, releaseID types.ReleaseID) {
	dashboard, err := g.uc.Dashboard.FindLatestByRelease(ctx, releaseID)
	if err != nil {
		logging.From(ctx).Error("failed to build dashboard for broadcast",
			"release_id", releaseID, "error", err)
		return
	}
	g.hub.Broadcast(ctx, releaseID, &Event{Type: EventDashboardUpdate, Payload: dashboard})
}

// RefreshRooms pushes a fresh dashboard to every active room. Used after
// background reclamation, which bypasses the command path.
func (g *Gateway) RefreshRooms(ctx context.Context) {
	for _, releaseID := range g.hub.Releases() {
		g.broadcastDashboard(ctx, releaseID)
	}
}

// errorCode maps the error taxonomy to a stable wire code
func errorCode(err error) string {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "not-found"
	case errors.Is(err, types.ErrConflict):
		return "conflict"
	case errors.Is(err, types.ErrForbidden):
		return "forbidden"
	case errors.Is(err, types.ErrBadRequest):
		return "bad-request"
	default:
		return "internal"
	}
}
