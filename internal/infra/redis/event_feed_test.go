package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"live-quiz-service/internal/domain"
)

type recordingBroadcaster struct {
	broadcasts []domain.Event
	sends      []domain.Event
	closed     []string
}

func (r *recordingBroadcaster) Broadcast(_ string, ev domain.Event) { r.broadcasts = append(r.broadcasts, ev) }
func (r *recordingBroadcaster) Send(_ string, ev domain.Event)      { r.sends = append(r.sends, ev) }
func (r *recordingBroadcaster) Disconnect(connID string)            { r.closed = append(r.closed, connID) }

func TestEventFeedPublishesBroadcasts(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("L1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msgs := sub.Channel()

	next := &recordingBroadcaster{}
	feed := NewEventFeed(client, next, nil)

	feed.Broadcast("L1", domain.NewEvent(domain.EventStartEligibility, domain.StartEligibilityPayload{
		Allowed: true,
		Count:   2,
	}))
	feed.Send("conn-1", domain.NewEvent(domain.EventJoined, domain.JoinedPayload{ParticipantID: "p1"}))
	feed.Disconnect("conn-1")

	if len(next.broadcasts) != 1 || len(next.sends) != 1 || len(next.closed) != 1 {
		t.Fatalf("expected calls forwarded, got %+v", next)
	}

	select {
	case msg := <-msgs:
		var got feedMessage
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode feed message: %v", err)
		}
		if got.LobbyID != "L1" || got.Type != string(domain.EventStartEligibility) {
			t.Fatalf("unexpected feed message %+v", got)
		}
		var payload domain.StartEligibilityPayload
		if err := json.Unmarshal(got.Payload, &payload); err != nil || !payload.Allowed || payload.Count != 2 {
			t.Fatalf("unexpected payload %s (%v)", got.Payload, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for feed message")
	}

	select {
	case msg := <-msgs:
		t.Fatalf("direct sends must not be published, got %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}
