// v0
// internal/publish/publish.go
package publish

import (
	"context"
	"time"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/session"
)

const (
	resultOK   = "ok"
	resultFail = "fail"
)

// Envelope is the wire form of a frame: the frame itself plus the run it
// belongs to and its position in the stream seen by the display side.
type Envelope struct {
	RunID string `json:"runId"`
	Seq   uint64 `json:"seq"`
	session.Frame
}

// EpisodeRecord is published once per finished training episode.
type EpisodeRecord struct {
	RunID     string            `json:"runId"`
	Algorithm string            `json:"algorithm"`
	Episode   int               `json:"episode"`
	Reward    float64           `json:"reward"`
	Steps     int               `json:"steps"`
	Outcome   string            `json:"outcome"`
	Final     building.Snapshot `json:"final"`
	At        time.Time         `json:"at"`
}

// Sink receives envelopes from a Forwarder.
type Sink interface {
	Name() string
	Send(ctx context.Context, env Envelope) error
}

// Recorder counts publish attempts per sink.
type Recorder interface {
	Publish(sink, result string)
}

type nopRecorder struct{}

func (nopRecorder) Publish(string, string) {}
