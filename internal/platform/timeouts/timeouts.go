// Package timeouts defines shared timeout constants used across the engine.
// Centralizing these values keeps round pacing decisions in one place and
// makes the durations discoverable.
package timeouts

import "time"

// Interpret caps the wait on the external interpretation service that turns
// proposal text into effect specifications. A timeout here degrades to "no
// new effects enacted this round" and must never block the round.
const Interpret = 30 * time.Second

// StorageOp caps a single persistence call at a round phase boundary
// (event append, batch load, batch flush).
const StorageOp = 10 * time.Second

// Round caps one full league round end to end.
const Round = 5 * time.Minute
