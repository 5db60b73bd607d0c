package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/controller/ws"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/repository/memory"
	"github.com/meirborowski/veriflow/pkg/usecase"
)

type gatewayFixture struct {
	srv     *httptest.Server
	uc      *usecase.UseCases
	tokens  map[types.UserID]*auth.Token
	gateway *ws.Gateway
}

func newGatewayFixture(t *testing.T, stories ...*model.ReleaseStory) *gatewayFixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	gt.NoError(t, repo.Project().Put(ctx, &model.Project{
		ID:        "proj-1",
		Name:      "Checkout",
		MemberIDs: []types.UserID{"tester-1", "tester-2"},
		CreatedAt: now,
	})).Required()
	closedAt := now
	gt.NoError(t, repo.Release().Put(ctx, &model.Release{
		ID:        "rel-1",
		ProjectID: "proj-1",
		Name:      "2026.08",
		Status:    types.ReleaseStatusClosed,
		CreatedAt: now,
		ClosedAt:  &closedAt,
	})).Required()
	for i, story := range stories {
		story.ReleaseID = "rel-1"
		story.Seq = i + 1
		story.CreatedAt = now
		gt.NoError(t, repo.Story().Put(ctx, story)).Required()
	}

	uc := usecase.New(repo)
	tokens := make(map[types.UserID]*auth.Token)
	for _, id := range []types.UserID{"tester-1", "tester-2"} {
		token, err := uc.Auth.IssueToken(ctx, id, string(id), string(id)+"@example.com")
		gt.NoError(t, err).Required()
		tokens[id] = token
	}

	gateway := ws.New(uc, ws.NewHub())
	srv := httptest.NewServer(gateway)
	t.Cleanup(srv.Close)

	return &gatewayFixture{srv: srv, uc: uc, tokens: tokens, gateway: gateway}
}

func gwStory(id string, priority types.Priority, stepIDs ...string) *model.ReleaseStory {
	steps := make([]model.Step, len(stepIDs))
	for i, sid := range stepIDs {
		steps[i] = model.Step{ID: types.StepID(sid), Order: i + 1, Instruction: "step " + sid}
	}
	return &model.ReleaseStory{
		ID:       types.StoryID(id),
		Title:    "Story " + id,
		Priority: priority,
		Steps:    steps,
	}
}

func (f *gatewayFixture) dial(t *testing.T, testerID types.UserID) *websocket.Conn {
	t.Helper()
	token := f.tokens[testerID]
	credential := string(token.ID) + ":" + string(token.Secret)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=" + credential
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmdType string, payload any) {
	t.Helper()
	cmd := ws.Command{Type: cmdType}
	if payload != nil {
		data, err := json.Marshal(payload)
		gt.NoError(t, err).Required()
		cmd.Payload = data
	}
	gt.NoError(t, conn.WriteJSON(cmd)).Required()
}

func readEvent(t *testing.T, conn *websocket.Conn) *ws.Event {
	t.Helper()
	gt.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second))).Required()
	var event ws.Event
	gt.NoError(t, conn.ReadJSON(&event)).Required()
	return &event
}

func payloadMap(t *testing.T, event *ws.Event) map[string]any {
	t.Helper()
	m, ok := event.Payload.(map[string]any)
	if !ok {
		t.Fatalf("event %s payload is not an object: %v", event.Type, event.Payload)
	}
	return m
}

func joinSession(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	sendCommand(t, conn, ws.CommandJoinSession, map[string]string{"releaseId": "rel-1"})
	// The joiner hears its own arrival, then gets the current dashboard
	event := readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventTesterJoined)
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)
}

func TestGateway_SessionFlow(t *testing.T) {
	f := newGatewayFixture(t,
		gwStory("s-1", types.PriorityCritical, "step-1", "step-2"),
		gwStory("s-2", types.PriorityLow, "step-1"),
	)
	conn := f.dial(t, "tester-1")

	joinSession(t, conn)

	// Request work: the assignment comes back first, then the room-wide
	// status change and dashboard refresh
	sendCommand(t, conn, ws.CommandRequestWork, nil)

	assigned := readEvent(t, conn)
	gt.Value(t, assigned.Type).Equal(ws.EventStoryAssigned)
	payload := payloadMap(t, assigned)
	exec := payload["execution"].(map[string]any)
	story := payload["story"].(map[string]any)
	gt.Value(t, story["id"]).Equal("s-1")
	executionID := exec["id"].(string)

	statusChanged := readEvent(t, conn)
	gt.Value(t, statusChanged.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, statusChanged)["status"]).Equal("in-progress")

	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)

	// Record a step
	sendCommand(t, conn, ws.CommandUpdateStep, map[string]string{
		"executionId": executionID,
		"stepId":      "step-1",
		"status":      "pass",
	})
	stepUpdated := readEvent(t, conn)
	gt.Value(t, stepUpdated.Type).Equal(ws.EventStepUpdated)
	gt.Value(t, payloadMap(t, stepUpdated)["stepId"]).Equal("step-1")
	gt.Value(t, payloadMap(t, stepUpdated)["storyId"]).Equal("s-1")

	// Submit the final verdict
	sendCommand(t, conn, ws.CommandSubmitResult, map[string]string{
		"executionId": executionID,
		"status":      "pass",
	})
	submitted := readEvent(t, conn)
	gt.Value(t, submitted.Type).Equal(ws.EventResultSubmitted)
	gt.Value(t, payloadMap(t, submitted)["status"]).Equal("pass")

	statusChanged = readEvent(t, conn)
	gt.Value(t, statusChanged.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, statusChanged)["status"]).Equal("pass")

	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)

	// The next request gets the remaining story
	sendCommand(t, conn, ws.CommandRequestWork, nil)
	assigned = readEvent(t, conn)
	gt.Value(t, assigned.Type).Equal(ws.EventStoryAssigned)
	gt.Value(t, payloadMap(t, assigned)["story"].(map[string]any)["id"]).Equal("s-2")
}

func TestGateway_PoolEmpty(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))

	conn1 := f.dial(t, "tester-1")
	joinSession(t, conn1)
	sendCommand(t, conn1, ws.CommandRequestWork, nil)
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventStoryAssigned)

	conn2 := f.dial(t, "tester-2")
	joinSession(t, conn2)
	// conn2 sees conn1's earlier assignment only via the dashboard; a
	// fresh request finds nothing left
	sendCommand(t, conn2, ws.CommandRequestWork, nil)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventPoolEmpty)
}

func TestGateway_ErrorIsolation(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))
	conn := f.dial(t, "tester-1")

	// Commands before joining a session fail but do not kill the
	// connection
	sendCommand(t, conn, ws.CommandRequestWork, nil)
	event := readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventError)
	gt.Value(t, payloadMap(t, event)["code"]).Equal("conflict")

	joinSession(t, conn)

	// Unknown execution
	sendCommand(t, conn, ws.CommandUpdateStep, map[string]string{
		"executionId": "no-such-execution",
		"stepId":      "step-1",
		"status":      "pass",
	})
	event = readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventError)
	gt.Value(t, payloadMap(t, event)["code"]).Equal("not-found")

	// Unknown command type
	sendCommand(t, conn, "make-coffee", nil)
	event = readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventError)
	gt.Value(t, payloadMap(t, event)["code"]).Equal("bad-request")

	// The connection still works
	sendCommand(t, conn, ws.CommandRequestWork, nil)
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventStoryAssigned)
}

func TestGateway_JoinValidation(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))
	conn := f.dial(t, "tester-1")

	sendCommand(t, conn, ws.CommandJoinSession, map[string]string{"releaseId": "rel-missing"})
	event := readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventError)
	gt.Value(t, payloadMap(t, event)["code"]).Equal("not-found")

	// Still able to join the real release afterwards
	joinSession(t, conn)

	// Joining twice is a conflict
	sendCommand(t, conn, ws.CommandJoinSession, map[string]string{"releaseId": "rel-1"})
	event = readEvent(t, conn)
	gt.Value(t, event.Type).Equal(ws.EventError)
	gt.Value(t, payloadMap(t, event)["code"]).Equal("conflict")
}

func TestGateway_Presence(t *testing.T) {
	f := newGatewayFixture(t,
		gwStory("s-1", types.PriorityHigh, "step-1"),
		gwStory("s-2", types.PriorityHigh, "step-1"),
	)

	conn1 := f.dial(t, "tester-1")
	joinSession(t, conn1)

	conn2 := f.dial(t, "tester-2")
	joinSession(t, conn2)

	// The first tester sees the second arrive
	event := readEvent(t, conn1)
	gt.Value(t, event.Type).Equal(ws.EventTesterJoined)
	gt.Value(t, payloadMap(t, event)["testerId"]).Equal("tester-2")

	// The second tester picks up a story, then vanishes
	sendCommand(t, conn2, ws.CommandRequestWork, nil)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventStoryAssigned)

	// conn1 sees the assignment broadcasts
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventStatusChanged)
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventDashboardUpdate)

	gt.NoError(t, conn2.Close())

	// Disconnect releases the story and notifies the room, naming the
	// story that became available again
	event = readEvent(t, conn1)
	gt.Value(t, event.Type).Equal(ws.EventTesterLeft)
	gt.Value(t, payloadMap(t, event)["testerId"]).Equal("tester-2")
	gt.Value(t, payloadMap(t, event)["unlockedStoryId"]).Equal("s-1")

	event = readEvent(t, conn1)
	gt.Value(t, event.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, event)["status"]).Equal("untested")

	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventDashboardUpdate)

	// The story is assignable again
	ctx := context.Background()
	execs, err := f.uc.Dashboard.GetExecutionHistory(ctx, "rel-1")
	gt.NoError(t, err).Required()
	gt.Array(t, execs).Length(0)
}

func TestGateway_RetryBroadcastsInProgress(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))
	conn := f.dial(t, "tester-1")
	joinSession(t, conn)

	sendCommand(t, conn, ws.CommandRequestWork, nil)
	assigned := readEvent(t, conn)
	gt.Value(t, assigned.Type).Equal(ws.EventStoryAssigned)
	executionID := payloadMap(t, assigned)["execution"].(map[string]any)["id"].(string)
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventStatusChanged)
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)

	sendCommand(t, conn, ws.CommandSubmitResult, map[string]string{
		"executionId": executionID,
		"status":      "fail",
	})
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventResultSubmitted)
	statusChanged := readEvent(t, conn)
	gt.Value(t, statusChanged.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, statusChanged)["status"]).Equal("fail")
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)

	// Re-assignment of the failed story announces the live attempt, not
	// the old verdict
	sendCommand(t, conn, ws.CommandRequestWork, nil)
	assigned = readEvent(t, conn)
	gt.Value(t, assigned.Type).Equal(ws.EventStoryAssigned)

	statusChanged = readEvent(t, conn)
	gt.Value(t, statusChanged.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, statusChanged)["status"]).Equal("in-progress")
	gt.Value(t, payloadMap(t, statusChanged)["attempt"]).Equal(float64(2))
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)
}

func TestGateway_EventScoping(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))

	conn1 := f.dial(t, "tester-1")
	joinSession(t, conn1)
	conn2 := f.dial(t, "tester-2")
	joinSession(t, conn2)
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventTesterJoined)

	sendCommand(t, conn2, ws.CommandRequestWork, nil)
	assigned := readEvent(t, conn2)
	gt.Value(t, assigned.Type).Equal(ws.EventStoryAssigned)
	executionID := payloadMap(t, assigned)["execution"].(map[string]any)["id"].(string)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventStatusChanged)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventDashboardUpdate)
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventStatusChanged)
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventDashboardUpdate)

	// Step progress and the verdict receipt go to the working tester only:
	// the peer's next events after the submission are the room-wide status
	// change and dashboard refresh
	sendCommand(t, conn2, ws.CommandUpdateStep, map[string]string{
		"executionId": executionID,
		"stepId":      "step-1",
		"status":      "pass",
	})
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventStepUpdated)

	sendCommand(t, conn2, ws.CommandSubmitResult, map[string]string{
		"executionId": executionID,
		"status":      "pass",
	})
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventResultSubmitted)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventStatusChanged)
	gt.Value(t, readEvent(t, conn2).Type).Equal(ws.EventDashboardUpdate)

	event := readEvent(t, conn1)
	gt.Value(t, event.Type).Equal(ws.EventStatusChanged)
	gt.Value(t, payloadMap(t, event)["status"]).Equal("pass")
	gt.Value(t, readEvent(t, conn1).Type).Equal(ws.EventDashboardUpdate)
}

func TestGateway_RejectsBadCredential(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=bogus:credential"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	gt.NoError(t, err).Required()
	defer func() { _ = conn.Close() }()

	// The server closes the connection without explanation
	gt.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second))).Required()
	_, _, err = conn.ReadMessage()
	gt.Error(t, err)
}

func TestGateway_BearerHeaderAuth(t *testing.T) {
	f := newGatewayFixture(t, gwStory("s-1", types.PriorityHigh, "step-1"))
	token := f.tokens["tester-1"]

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	header := map[string][]string{
		"Authorization": {fmt.Sprintf("Bearer %s:%s", token.ID, token.Secret)},
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	gt.NoError(t, err).Required()
	defer func() { _ = conn.Close() }()

	sendCommand(t, conn, ws.CommandJoinSession, map[string]string{"releaseId": "rel-1"})
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventTesterJoined)
	gt.Value(t, readEvent(t, conn).Type).Equal(ws.EventDashboardUpdate)
}
