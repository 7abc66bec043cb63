package model

import (
	"testing"
	"time"
)

func TestCanAdvance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to MessageStatus
		want     bool
	}{
		{StatusPending, StatusSent, true},
		{StatusPending, StatusDelivered, true},
		{StatusSent, StatusDelivered, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusReplied, true},
		{StatusRead, StatusReplied, true},
		{StatusRead, StatusDelivered, false},
		{StatusReplied, StatusRead, false},
		{StatusSent, StatusSent, false},
		{StatusSent, StatusPending, false},
		{StatusPending, StatusFailed, true},
		{StatusRead, StatusFailed, true},
		{StatusFailed, StatusFailed, false},
		{StatusFailed, StatusSent, false},
		{StatusFailed, StatusReplied, false},
		{StatusPending, MessageStatus("bogus"), false},
	}

	for _, tc := range cases {
		if got := CanAdvance(tc.from, tc.to); got != tc.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCampaignMessage_Advance_StampsTimestamps(t *testing.T) {
	t.Parallel()

	m := &CampaignMessage{ID: 1, Status: StatusPending}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if !m.Advance(StatusSent, at) {
		t.Fatalf("expected pending -> sent to apply")
	}
	if m.SentAt == nil || !m.SentAt.Equal(at) {
		t.Fatalf("expected SentAt %v, got %v", at, m.SentAt)
	}

	if !m.Advance(StatusRead, at.Add(time.Second)) {
		t.Fatalf("expected sent -> read to apply")
	}
	if m.ReadAt == nil || m.DeliveredAt != nil {
		t.Fatalf("expected only ReadAt stamped, got delivered=%v read=%v", m.DeliveredAt, m.ReadAt)
	}

	if m.Advance(StatusDelivered, at.Add(2*time.Second)) {
		t.Fatalf("expected read -> delivered to be rejected")
	}
	if m.Status != StatusRead {
		t.Fatalf("expected status to stay read, got %s", m.Status)
	}
}

func TestCampaignMessage_FailedIsNeverRevived(t *testing.T) {
	t.Parallel()

	m := &CampaignMessage{Status: StatusPending}
	now := time.Now()
	if !m.Advance(StatusFailed, now) {
		t.Fatalf("expected pending -> failed to apply")
	}
	for _, s := range []MessageStatus{StatusPending, StatusSent, StatusDelivered, StatusRead, StatusReplied, StatusFailed} {
		if m.Advance(s, now) {
			t.Fatalf("expected failed -> %s to be rejected", s)
		}
	}
}

func TestSendInterval(t *testing.T) {
	t.Parallel()

	cases := map[int]time.Duration{
		60:  time.Second,
		30:  2 * time.Second,
		1:   time.Minute,
		0:   time.Minute,
		-5:  time.Minute,
		600: 100 * time.Millisecond,
	}
	for limit, want := range cases {
		c := &Campaign{RateLimit: limit}
		if got := c.SendInterval(); got != want {
			t.Errorf("RateLimit=%d: expected %v, got %v", limit, want, got)
		}
	}
}

func TestCampaignStats_Add(t *testing.T) {
	t.Parallel()

	var s CampaignStats
	s.Add(StatusPending, 2)
	s.Add(StatusReplied, 1)
	s.Add(StatusFailed, 3)
	s.Add(MessageStatus("unknown"), 10)

	if s.Total != 6 || s.Pending != 2 || s.Replied != 1 || s.Failed != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestContact_HasAnyTag(t *testing.T) {
	t.Parallel()

	c := &Contact{Tags: []string{"lead", "vip"}}
	if !c.HasAnyTag([]string{"cold", "vip"}) {
		t.Fatalf("expected match on vip")
	}
	if c.HasAnyTag([]string{"cold"}) {
		t.Fatalf("expected no match")
	}
	if c.HasAnyTag(nil) {
		t.Fatalf("expected no match for empty filter")
	}
}
