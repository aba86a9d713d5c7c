// Package console is the per-view orchestrator of the monitoring console. A
// Workspace loads everything one patient view needs, commits it only if no
// newer load has started, routes clinician actions through the review
// service, and reloads from the API after every write.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/domain/review"
	"github.com/carepulse/console/internal/domain/timeline"
	"github.com/carepulse/console/internal/platform/cache"
	"github.com/carepulse/console/internal/platform/freshness"
	"github.com/carepulse/console/internal/platform/session"
)

// Bundle is everything fetched for one patient. It is what the patient cache
// holds.
type Bundle struct {
	Patient       *patient.Patient
	Logs          []patient.CallLog
	Reminders     []care.MedicationReminder
	Interventions []care.Intervention
	Assignment    *care.Assignment
}

// View is the committed, render-ready state of one patient view.
type View struct {
	PatientID     int64                     `json:"patient_id"`
	Day           string                    `json:"day,omitempty"`
	Patient       *patient.Patient          `json:"patient"`
	RiskLevel     string                    `json:"risk_level"`
	Log           *patient.CallLog          `json:"log,omitempty"`
	PressResult   string                    `json:"press_result,omitempty"`
	Review        []review.Item             `json:"review"`
	Timeline      *timeline.Timeline        `json:"timeline"`
	Reminders     []care.MedicationReminder `json:"reminders"`
	Adherence     string                    `json:"adherence"`
	Interventions []care.Intervention       `json:"interventions"`
	Assignment    *care.Assignment          `json:"assignment,omitempty"`
	LoadedAt      time.Time                 `json:"loaded_at"`
}

// Target is the review target the view points at.
func (v *View) Target() review.Target {
	return review.Target{PatientID: v.PatientID, Day: v.Day, Log: v.Log}
}

// ErrNoView is returned by actions when no patient view is loaded.
var ErrNoView = errors.New("no patient selected")

type Option func(*Workspace)

func WithLogger(l zerolog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// Workspace is safe for concurrent use.
type Workspace struct {
	patients *patient.Service
	care     *care.Service
	review   *review.Service
	cache    *cache.PatientCache[*Bundle]
	gate     freshness.Gate
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	view        *View
	subscribers map[int]func(*View)
	nextSub     int
}

// NewWorkspace wires a workspace. The cache must be the one the care and
// review services invalidate. When sess is non-nil the workspace empties
// itself on session teardown.
func NewWorkspace(patients *patient.Service, careSvc *care.Service, reviewSvc *review.Service, c *cache.PatientCache[*Bundle], sess *session.Session, opts ...Option) *Workspace {
	w := &Workspace{
		patients:    patients,
		care:        careSvc,
		review:      reviewSvc,
		cache:       c,
		logger:      zerolog.Nop(),
		now:         time.Now,
		subscribers: map[int]func(*View){},
	}
	for _, o := range opts {
		o(w)
	}
	if sess != nil {
		sess.OnTeardown(w.Reset)
	}
	return w
}

// Subscribe registers fn to receive every committed view. The returned func
// unsubscribes.
func (w *Workspace) Subscribe(fn func(*View)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subscribers, id)
	}
}

// Current returns the committed view, or nil.
func (w *Workspace) Current() *View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

// Reset drops the committed view and every cached bundle. Loads still in
// flight are made stale.
func (w *Workspace) Reset() {
	w.mu.Lock()
	w.gate.Next()
	w.view = nil
	w.mu.Unlock()
	w.cache.Reset()
}

// Load fetches and commits the view of patientID for day (YYYY-MM-DD; empty
// selects the most recent call). It returns the committed view and true, or
// nil and false when a newer load started while this one was in flight. A
// superseded load is not an error.
func (w *Workspace) Load(ctx context.Context, patientID int64, day string) (*View, bool, error) {
	w.mu.Lock()
	token := w.gate.Next()
	w.mu.Unlock()

	log := w.logger.With().Int64("patient_id", patientID).Uint64("token", uint64(token)).Logger()

	gen := w.cache.Generation(patientID)
	bundle, cached := w.cache.Get(patientID)
	if !cached {
		var err error
		bundle, err = w.fetch(ctx, patientID)
		if err != nil {
			log.Warn().Err(err).Msg("load failed")
			return nil, false, err
		}
	}
	view := w.build(patientID, day, bundle)

	var subs []func(*View)
	w.mu.Lock()
	committed := w.gate.Guard(token, func() {
		if !cached && !w.cache.PutIf(patientID, gen, bundle) {
			log.Debug().Msg("bundle invalidated during fetch, not cached")
		}
		w.view = view
		for _, fn := range w.subscribers {
			subs = append(subs, fn)
		}
	})
	w.mu.Unlock()

	if !committed {
		log.Debug().Msg("stale load dropped")
		return nil, false, nil
	}
	for _, fn := range subs {
		fn(view)
	}
	log.Debug().Bool("cached", cached).Msg("view committed")
	return view, true, nil
}

// fetch reads the patient record and its four collections concurrently.
func (w *Workspace) fetch(ctx context.Context, patientID int64) (*Bundle, error) {
	b := &Bundle{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := w.patients.GetPatient(gctx, patientID)
		if err != nil {
			return fmt.Errorf("patient: %w", err)
		}
		b.Patient = p
		return nil
	})
	g.Go(func() error {
		logs, err := w.patients.Logs(gctx, patientID)
		if err != nil {
			return fmt.Errorf("call logs: %w", err)
		}
		b.Logs = logs
		return nil
	})
	g.Go(func() error {
		rs, err := w.care.ListReminders(gctx, patientID)
		if err != nil {
			return fmt.Errorf("reminders: %w", err)
		}
		b.Reminders = rs
		return nil
	})
	g.Go(func() error {
		in, err := w.care.ListInterventions(gctx, patientID)
		if err != nil {
			return fmt.Errorf("interventions: %w", err)
		}
		b.Interventions = in
		return nil
	})
	g.Go(func() error {
		a, err := w.care.CurrentAssignment(gctx, patientID)
		if err != nil {
			return fmt.Errorf("assignment: %w", err)
		}
		b.Assignment = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

func (w *Workspace) build(patientID int64, day string, b *Bundle) *View {
	v := &View{
		PatientID:     patientID,
		Day:           day,
		Patient:       b.Patient,
		Log:           patient.ForDay(b.Logs, day),
		Timeline:      timeline.Build(b.Logs, b.Reminders, b.Interventions),
		Reminders:     b.Reminders,
		Adherence:     timeline.AdherenceBadge(b.Reminders),
		Interventions: b.Interventions,
		Assignment:    b.Assignment,
		LoadedAt:      w.now(),
	}
	var score *float64
	if b.Patient != nil {
		score = b.Patient.RiskScore
	}
	if v.Log != nil {
		if v.Log.RiskScore != nil {
			score = v.Log.RiskScore
		}
		v.PressResult = timeline.PressResult(*v.Log)
		v.Review = review.Items(v.Log, review.EscalatedIntents(v.Log, b.Interventions))
	}
	v.RiskLevel = timeline.RiskLevel(score)
	return v
}
