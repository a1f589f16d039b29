package notify

import (
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

func TestChannelName(t *testing.T) {
	got := ChannelName("agent-9", "user-3")
	want := "agent_jobs:agent_agent-9:user_user-3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHubDeliversToOwningChannelOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)

	owner := hub.Subscribe(ChannelName("a1", "u1"))
	other := hub.Subscribe(ChannelName("a1", "u2"))
	defer hub.Unsubscribe(owner)
	defer hub.Unsubscribe(other)

	data := domain.JobStatusData{JobID: "job-1", JobStatus: domain.JobStatusCompleted, JobStatusSettled: true}
	hub.PublishJobStatus("a1", "u1", data)

	select {
	case got := <-owner.C:
		if got != data {
			t.Fatalf("got %+v, want %+v", got, data)
		}
	default:
		t.Fatal("owner received nothing")
	}

	select {
	case got := <-other.C:
		t.Fatalf("other user received %+v", got)
	default:
	}
}

func TestHubPublishWithNoSubscribersIsNoop(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	hub.PublishJobStatus("a1", "u1", domain.JobStatusData{JobID: "job-1"})
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	sub := hub.Subscribe(ChannelName("a1", "u1"))
	defer hub.Unsubscribe(sub)

	// One more than the buffer; the publisher must not block.
	for i := 0; i < cap(sub.C)+1; i++ {
		hub.PublishJobStatus("a1", "u1", domain.JobStatusData{JobID: "job-1"})
	}
	if len(sub.C) != cap(sub.C) {
		t.Fatalf("buffered %d, want %d", len(sub.C), cap(sub.C))
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	sub := hub.Subscribe(ChannelName("a1", "u1"))
	hub.Unsubscribe(sub)

	if _, open := <-sub.C; open {
		t.Fatal("subscription channel still open")
	}

	// Double unsubscribe must not panic.
	hub.Unsubscribe(sub)
}
