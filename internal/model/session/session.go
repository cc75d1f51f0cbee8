package session

import (
	"fmt"
	"time"

	"github.com/rudeai/innerlog/backend/internal/model/record"
)

// State is a step of the conversation protocol.
type State string

const (
	StateInitial                State = "initial"
	StateConfirmingLog          State = "confirming_log"
	StateAskingOverrideReady    State = "asking_override_ready"
	StateProvidingOverride      State = "providing_override"
	StateCheckingOverrideResult State = "checking_override_result"
	StateComplete               State = "complete"
)

// Valid reports whether s is one of the protocol states.
func (s State) Valid() bool {
	switch s {
	case StateInitial, StateConfirmingLog, StateAskingOverrideReady,
		StateProvidingOverride, StateCheckingOverrideResult, StateComplete:
		return true
	}
	return false
}

// HasLog reports whether a session in this state must carry a log.
func (s State) HasLog() bool {
	return s != StateInitial && s != StateComplete
}

// Readiness is the tri-state answer to the override-readiness question.
type Readiness string

const (
	ReadinessUnknown Readiness = "unknown"
	ReadinessYes     Readiness = "yes"
	ReadinessNo      Readiness = "no"
)

// Outcome records whether the override sequence resolved the emotional state.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeResolved   Outcome = "resolved"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomePartial    Outcome = "partial"
)

// Cycle archives one finished pass through the protocol.
type Cycle struct {
	Log            record.Log `json:"log"`
	OverrideReady  Readiness  `json:"overrideReady"`
	OverrideResult Outcome    `json:"overrideResult,omitempty"`
	CompletedAt    time.Time  `json:"completedAt"`
	Reset          bool       `json:"reset,omitempty"`
}

// Session captures one user's isolated run through the protocol.
type Session struct {
	ID                 string      `json:"id"`
	State              State       `json:"state"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	CompletedAt        *time.Time  `json:"completedAt,omitempty"`
	CurrentLog         *record.Log `json:"currentLog,omitempty"`
	History            []Entry     `json:"history"`
	OverrideReady      Readiness   `json:"overrideReady"`
	OverrideResult     Outcome     `json:"overrideResult,omitempty"`
	AwaitingCorrection bool        `json:"awaitingCorrection,omitempty"`
	Cycles             []Cycle     `json:"cycles,omitempty"`
	TurnCount          int         `json:"turnCount"`
}

// New returns a session in the initial state.
func New(id string, now time.Time) Session {
	return Session{
		ID:            id,
		State:         StateInitial,
		CreatedAt:     now,
		UpdatedAt:     now,
		History:       make([]Entry, 0, 16),
		OverrideReady: ReadinessUnknown,
	}
}

// Clone deep-copies the session so stored state is never shared with callers.
func (s Session) Clone() Session {
	out := s
	if s.CurrentLog != nil {
		l := s.CurrentLog.Clone()
		out.CurrentLog = &l
	}
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		out.CompletedAt = &ts
	}
	out.History = append([]Entry(nil), s.History...)
	if s.Cycles != nil {
		out.Cycles = make([]Cycle, len(s.Cycles))
		for i, c := range s.Cycles {
			c.Log = c.Log.Clone()
			out.Cycles[i] = c
		}
	}
	return out
}

// Active reports whether the session has not reached the terminal state.
func (s Session) Active() bool {
	return s.State != StateComplete
}

// Validate checks that the optional fields agree with the current state.
func (s Session) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("unknown state %q", s.State)
	}
	if s.State.HasLog() && s.CurrentLog == nil {
		return fmt.Errorf("state %s requires a log", s.State)
	}
	if s.State == StateInitial && s.CurrentLog != nil {
		return fmt.Errorf("state %s must not carry a log", s.State)
	}

	switch s.State {
	case StateInitial, StateConfirmingLog, StateAskingOverrideReady:
		if s.OverrideReady != ReadinessUnknown {
			return fmt.Errorf("state %s must not have override readiness %q", s.State, s.OverrideReady)
		}
	case StateProvidingOverride, StateCheckingOverrideResult:
		if s.OverrideReady != ReadinessYes {
			return fmt.Errorf("state %s requires override readiness yes", s.State)
		}
	case StateComplete:
		if s.CurrentLog == nil {
			return fmt.Errorf("state %s requires a log", s.State)
		}
		if s.OverrideReady == ReadinessUnknown {
			return fmt.Errorf("state %s requires resolved override readiness", s.State)
		}
		if s.OverrideReady == ReadinessNo && s.OverrideResult != OutcomeNone {
			return fmt.Errorf("declined override must not carry a result")
		}
		if s.OverrideReady == ReadinessYes && s.OverrideResult == OutcomeNone {
			return fmt.Errorf("accepted override requires a result")
		}
		return nil
	}

	if s.OverrideResult != OutcomeNone {
		return fmt.Errorf("state %s must not carry an override result", s.State)
	}
	return nil
}

// Info is the caller-facing snapshot returned by GetSessionInfo.
type Info struct {
	ID             string     `json:"id"`
	State          State      `json:"state"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	TurnCount      int        `json:"turnCount"`
	CurrentLogID   string     `json:"currentLogId,omitempty"`
	PatternTag     string     `json:"patternTag,omitempty"`
	OverrideReady  Readiness  `json:"overrideReady"`
	OverrideResult Outcome    `json:"overrideResult,omitempty"`
	Cycles         int        `json:"cycles"`
}

// Info summarises the session.
func (s Session) Info() Info {
	info := Info{
		ID:             s.ID,
		State:          s.State,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		TurnCount:      s.TurnCount,
		OverrideReady:  s.OverrideReady,
		OverrideResult: s.OverrideResult,
		Cycles:         len(s.Cycles),
	}
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		info.CompletedAt = &ts
	}
	if s.CurrentLog != nil {
		info.CurrentLogID = s.CurrentLog.ID
		info.PatternTag = s.CurrentLog.PatternTag
	}
	return info
}
