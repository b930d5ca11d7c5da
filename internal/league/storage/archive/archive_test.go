package archive

import (
	"bytes"
	"testing"
	"time"

	"github.com/openleague/courtside/internal/league/event"
)

func TestExportJournal_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	events := []event.Event{
		{
			LeagueID:    "league-1",
			Seq:         1,
			Timestamp:   ts,
			Type:        event.TypeEffectRegistered,
			EffectID:    "eff-1",
			ProposalID:  "prop-1",
			PayloadJSON: []byte(`{"effect_id":"eff-1"}`),
		},
		{
			LeagueID:   "league-1",
			Seq:        2,
			Timestamp:  ts.Add(time.Hour),
			Type:       event.TypeEffectExpired,
			EffectID:   "eff-1",
			ProposalID: "prop-1",
		},
	}

	var buf bytes.Buffer
	if err := ExportJournal(events, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	decoded, err := ReadJournal(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d events, want 2", len(decoded))
	}
	for i, got := range decoded {
		want := events[i]
		if got.LeagueID != want.LeagueID || got.Seq != want.Seq || got.Type != want.Type {
			t.Fatalf("event %d = %+v, want %+v", i, got, want)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Fatalf("event %d timestamp = %v, want %v", i, got.Timestamp, want.Timestamp)
		}
		if string(got.PayloadJSON) != string(want.PayloadJSON) {
			t.Fatalf("event %d payload = %s, want %s", i, got.PayloadJSON, want.PayloadJSON)
		}
		if got.EffectID != want.EffectID || got.ProposalID != want.ProposalID {
			t.Fatalf("event %d ids = %s/%s, want %s/%s", i, got.EffectID, got.ProposalID, want.EffectID, want.ProposalID)
		}
	}
}

func TestExportJournal_EmptyJournal(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJournal(nil, &buf); err != nil {
		t.Fatalf("export empty: %v", err)
	}
	decoded, err := ReadJournal(&buf)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded %d events, want 0", len(decoded))
	}
}
