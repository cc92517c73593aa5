package handlers

import (
	"testing"
	"time"
)

func TestDropState(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		startsAt  time.Time
		endsAt    time.Time
		remaining int32
		want      string
	}{
		{
			name:      "before window",
			startsAt:  now.Add(time.Hour),
			endsAt:    now.Add(3 * time.Hour),
			remaining: 10,
			want:      DropStateUpcoming,
		},
		{
			name:      "inside window with stock",
			startsAt:  now.Add(-time.Hour),
			endsAt:    now.Add(time.Hour),
			remaining: 1,
			want:      DropStateLive,
		},
		{
			name:      "inside window without stock",
			startsAt:  now.Add(-time.Hour),
			endsAt:    now.Add(time.Hour),
			remaining: 0,
			want:      DropStateSoldOut,
		},
		{
			name:      "after window",
			startsAt:  now.Add(-3 * time.Hour),
			endsAt:    now.Add(-time.Hour),
			remaining: 10,
			want:      DropStateEnded,
		},
		{
			name:      "ended and sold out reports ended",
			startsAt:  now.Add(-3 * time.Hour),
			endsAt:    now.Add(-time.Hour),
			remaining: 0,
			want:      DropStateEnded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := dropState(tc.startsAt, tc.endsAt, tc.remaining, now)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
