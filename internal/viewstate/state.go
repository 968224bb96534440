// Package viewstate models what a client currently shows for a consultation
// as an immutable value. Every transition goes through Reduce.
package viewstate

import (
	"github.com/joelkehle/triage-assistant/internal/responseparse"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// State is never mutated in place; Reduce returns a new value. Seq is the
// sequence number of the latest submission.
type State struct {
	Seq        uint64                          `json:"seq"`
	Mode       string                          `json:"mode"`
	Status     Status                          `json:"status"`
	Input      string                          `json:"input,omitempty"`
	Raw        string                          `json:"raw,omitempty"`
	Prediction *responseparse.PredictionResult `json:"prediction,omitempty"`
	Report     *responseparse.ReportResult     `json:"report,omitempty"`
	Error      string                          `json:"error,omitempty"`
}

func Initial() State {
	return State{Status: StatusIdle}
}

type Action interface {
	isAction()
}

// Submitted starts a new request. It supersedes any request in flight.
type Submitted struct {
	Mode  responseparse.Mode
	Input string
}

// Succeeded delivers the raw response of the submission with sequence Seq.
// The raw text is parsed according to the state's mode.
type Succeeded struct {
	Seq uint64
	Raw string
}

// Failed delivers an error for the submission with sequence Seq.
type Failed struct {
	Seq uint64
	Err string
}

type Reset struct{}

func (Submitted) isAction() {}
func (Succeeded) isAction() {}
func (Failed) isAction()    {}
func (Reset) isAction()     {}

// Reduce applies a to s. Results for any submission other than the latest
// are dropped, so a slow earlier request cannot overwrite a newer one.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Submitted:
		return State{
			Seq:    s.Seq + 1,
			Mode:   a.Mode.String(),
			Status: StatusLoading,
			Input:  a.Input,
		}
	case Succeeded:
		if a.Seq != s.Seq || s.Status != StatusLoading {
			return s
		}
		next := State{Seq: s.Seq, Mode: s.Mode, Status: StatusReady, Input: s.Input, Raw: a.Raw}
		if s.Mode == responseparse.ModeReport.String() {
			r := responseparse.ParseReport(a.Raw)
			next.Report = &r
		} else {
			p := responseparse.ParsePrediction(a.Raw)
			next.Prediction = &p
		}
		return next
	case Failed:
		if a.Seq != s.Seq || s.Status != StatusLoading {
			return s
		}
		return State{Seq: s.Seq, Mode: s.Mode, Status: StatusFailed, Input: s.Input, Error: a.Err}
	case Reset:
		return State{Seq: s.Seq, Status: StatusIdle}
	default:
		return s
	}
}
