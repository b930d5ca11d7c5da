// Package archive exports the league journal as zstd-compressed JSONL for
// offline analysis. Export is a pure encode of an already-read event slice;
// it never mutates the journal.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/openleague/courtside/internal/league/event"
)

// ExportJournal writes one JSON line per event, zstd-compressed, to w.
func ExportJournal(events []event.Event, w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	buf := bufio.NewWriterSize(enc, 64*1024)

	for _, evt := range events {
		line, err := json.Marshal(exportLine{
			LeagueID:    evt.LeagueID,
			Seq:         evt.Seq,
			Timestamp:   evt.Timestamp.UnixMilli(),
			Type:        string(evt.Type),
			EffectID:    evt.EffectID,
			ProposalID:  evt.ProposalID,
			PayloadJSON: evt.PayloadJSON,
		})
		if err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode event seq %d: %w", evt.Seq, err)
		}
		if _, err := buf.Write(line); err != nil {
			_ = enc.Close()
			return fmt.Errorf("write event seq %d: %w", evt.Seq, err)
		}
		if err := buf.WriteByte('\n'); err != nil {
			_ = enc.Close()
			return fmt.Errorf("write event seq %d: %w", evt.Seq, err)
		}
	}

	if err := buf.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("flush export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// ReadJournal decodes a zstd JSONL export back into events, for tooling and
// round-trip tests.
func ReadJournal(r io.Reader) ([]event.Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var out []event.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("decode export line: %w", err)
		}
		out = append(out, line.toEvent())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return out, nil
}

type exportLine struct {
	LeagueID    string          `json:"league_id"`
	Seq         uint64          `json:"seq"`
	Timestamp   int64           `json:"timestamp"`
	Type        string          `json:"type"`
	EffectID    string          `json:"effect_id,omitempty"`
	ProposalID  string          `json:"proposal_id,omitempty"`
	PayloadJSON json.RawMessage `json:"payload,omitempty"`
}

func (l exportLine) toEvent() event.Event {
	return event.Event{
		LeagueID:    l.LeagueID,
		Seq:         l.Seq,
		Timestamp:   millisToTime(l.Timestamp),
		Type:        event.Type(l.Type),
		EffectID:    l.EffectID,
		ProposalID:  l.ProposalID,
		PayloadJSON: l.PayloadJSON,
	}
}
