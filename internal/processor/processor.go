// Package processor drives one meeting through transcription, redaction,
// extraction and persistence, and owns the meeting status lifecycle:
//
//	pending -> processing -> completed
//	processing -> failed
//
// A run never returns an error to its caller; the outcome is the meeting's
// persisted status.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/extractor"
	"meeting-actions-go/internal/redaction"
	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/transcription"
	"meeting-actions-go/internal/types"
)

// ErrMissingAudio fails a meeting that has no audio reference.
var ErrMissingAudio = errors.New("meeting has no audio reference")

// Store is the persistence the pipeline needs. Every status write is
// conditional on the status the run last saw, so a run that lost its meeting
// to another writer cannot overwrite it.
type Store interface {
	// LoadMeeting returns nil, nil for an unknown id.
	LoadMeeting(ctx context.Context, id int64) (*types.Meeting, error)
	// TransitionMeeting saves m only while the stored status is still from
	// and fails with store.ErrStatusChanged otherwise.
	TransitionMeeting(ctx context.Context, m *types.Meeting, from types.MeetingStatus) error
	// CompleteMeeting stores every task and the completed meeting, or
	// nothing, and only while the meeting is still processing.
	CompleteMeeting(ctx context.Context, m *types.Meeting, tasks []types.Task) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string, opts transcription.Options) (types.TranscriptResult, error)
}

type Redactor interface {
	Redact(text string) (string, []redaction.Finding)
}

type Extractor interface {
	ExtractDetailed(ctx context.Context, text string) extractor.Result
}

type Outcome string

const (
	// OutcomeSkipped means the meeting was absent, not pending, or taken
	// over by another writer during the run; nothing of this run was kept.
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Result summarizes one run for logging and callers that want detail.
type Result struct {
	MeetingID        int64
	RunID            string
	Outcome          Outcome
	Status           types.MeetingStatus
	TasksCreated     int
	Redactions       int
	ExtractionSource extractor.Source
	// Err is the cause of a failed or aborted run.
	Err error
}

type Option func(*Processor)

// WithRedactor enables redaction. Without it transcripts are stored as
// transcribed.
func WithRedactor(r Redactor) Option {
	return func(p *Processor) { p.redactor = r }
}

// WithExtractor enables task extraction. Without it meetings complete with
// zero tasks.
func WithExtractor(e Extractor) Option {
	return func(p *Processor) { p.extractor = e }
}

func WithTranscriptionOptions(o transcription.Options) Option {
	return func(p *Processor) { p.transcribeOpts = o }
}

// WithTimeouts bounds the transcription and extraction calls. Zero leaves a
// stage bounded only by the caller's context.
func WithTimeouts(transcribe, extract time.Duration) Option {
	return func(p *Processor) {
		p.transcribeTimeout = transcribe
		p.extractTimeout = extract
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor holds no per-run state and may run different meetings
// concurrently. Two runs of the same meeting race for the pending claim and
// only the winner proceeds.
type Processor struct {
	store          Store
	transcriber    Transcriber
	redactor       Redactor
	extractor      Extractor
	transcribeOpts transcription.Options

	transcribeTimeout time.Duration
	extractTimeout    time.Duration

	now func() time.Time
	log *logrus.Entry
}

func New(st Store, transcriber Transcriber, log *logrus.Entry, opts ...Option) *Processor {
	p := &Processor{
		store:       st,
		transcriber: transcriber,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline for one meeting.
func (p *Processor) Process(ctx context.Context, id int64) (res Result) {
	res = Result{MeetingID: id, RunID: uuid.NewString(), Outcome: OutcomeSkipped}
	log := p.log.WithFields(logrus.Fields{"meeting_id": id, "run_id": res.RunID})

	m, err := p.store.LoadMeeting(ctx, id)
	if err != nil {
		res.Err = fmt.Errorf("load meeting: %w", err)
		log.WithError(err).Error("could not load meeting")
		return res
	}
	if m == nil {
		log.Info("meeting not found, nothing to process")
		return res
	}
	res.Status = m.Status
	if m.Status != types.MeetingPending {
		log.WithField("status", m.Status).Info("meeting is not pending, skipping")
		return res
	}

	snapshot := *m
	m.Status = types.MeetingProcessing
	if err := p.store.TransitionMeeting(ctx, m, types.MeetingPending); err != nil {
		if lostClaim(err) {
			return p.abandon(ctx, log, res, err)
		}
		res.Err = fmt.Errorf("mark processing: %w", err)
		log.WithError(err).Error("could not mark meeting processing")
		return res
	}
	res.Status = types.MeetingProcessing

	start := time.Now()
	log.Info("processing started")

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, log, snapshot, res, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.run(ctx, log, m, &res); err != nil {
		if lostClaim(err) {
			return p.abandon(ctx, log, res, err)
		}
		return p.fail(ctx, log, snapshot, res, err)
	}

	res.Outcome, res.Status = OutcomeCompleted, types.MeetingCompleted
	log.WithFields(logrus.Fields{
		"tasks":       res.TasksCreated,
		"redactions":  res.Redactions,
		"extraction":  res.ExtractionSource,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("processing completed")
	return res
}

func (p *Processor) run(ctx context.Context, log *logrus.Entry, m *types.Meeting, res *Result) error {
	if strings.TrimSpace(m.AudioRef) == "" {
		return ErrMissingAudio
	}

	tr, err := p.transcribe(ctx, m.AudioRef)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	text, structure := tr.Text, tr.Structured()

	redacted := false
	if p.redactor != nil {
		var findings []redaction.Finding
		text, findings = p.redactor.Redact(text)
		redacted = len(findings) > 0
		res.Redactions = len(findings)
		for i := range structure.Segments {
			var segFindings []redaction.Finding
			structure.Segments[i].Text, segFindings = p.redactor.Redact(structure.Segments[i].Text)
			findings = append(findings, segFindings...)
		}
		if len(findings) > 0 {
			log.WithFields(logrus.Fields{
				"findings":   res.Redactions,
				"categories": redaction.Categories(findings),
			}).Info("transcript redacted")
		}
	}

	var tasks []types.Task
	if p.extractor != nil {
		ectx, cancel := withTimeout(ctx, p.extractTimeout)
		out := p.extractor.ExtractDetailed(ectx, text)
		cancel()
		res.ExtractionSource = out.Source
		if out.ProviderErr != nil {
			log.WithError(out.ProviderErr).Warn("extraction degraded to heuristic")
		}
		tasks = TasksFromCandidates(out.Tasks)
	}

	now := p.now().UTC()
	m.Transcript = &text
	m.Structured = structure
	m.IsRedacted = redacted
	m.ProcessedAt = &now
	m.Status = types.MeetingCompleted
	if err := p.store.CompleteMeeting(ctx, m, tasks); err != nil {
		return fmt.Errorf("complete meeting: %w", err)
	}
	res.TasksCreated = len(tasks)
	return nil
}

func (p *Processor) transcribe(ctx context.Context, audioRef string) (types.TranscriptResult, error) {
	tctx, cancel := withTimeout(ctx, p.transcribeTimeout)
	defer cancel()
	return p.transcriber.Transcribe(tctx, audioRef, p.transcribeOpts)
}

// fail persists the pre-run snapshot as failed, so nothing a partial run
// produced is kept. The save ignores cancellation of ctx: a meeting must not
// be left in processing.
func (p *Processor) fail(ctx context.Context, log *logrus.Entry, snapshot types.Meeting, res Result, cause error) Result {
	failed := snapshot
	failed.Status = types.MeetingFailed
	failed.ProcessedAt = nil

	entry := log.WithError(cause)
	if cat, ok := transcription.CategoryOf(cause); ok {
		entry = entry.WithField("category", cat)
	}
	entry.Warn("processing failed")

	if err := p.store.TransitionMeeting(context.WithoutCancel(ctx), &failed, types.MeetingProcessing); err != nil {
		if lostClaim(err) {
			return p.abandon(ctx, log, res, cause)
		}
		log.WithError(err).Error("could not mark meeting failed")
	}
	res.Outcome, res.Status, res.Err = OutcomeFailed, types.MeetingFailed, cause
	res.TasksCreated = 0
	return res
}

// abandon drops a run whose meeting was moved on by another writer, for
// example stuck-run recovery. Whatever that writer stored is left as is.
func (p *Processor) abandon(ctx context.Context, log *logrus.Entry, res Result, cause error) Result {
	res.Outcome, res.Err, res.TasksCreated = OutcomeSkipped, cause, 0
	res.Status = ""
	if m, err := p.store.LoadMeeting(context.WithoutCancel(ctx), res.MeetingID); err == nil && m != nil {
		res.Status = m.Status
	}
	log.WithError(cause).WithField("status", res.Status).Warn("meeting changed hands during the run, result discarded")
	return res
}

func lostClaim(err error) bool {
	return errors.Is(err, store.ErrStatusChanged) || errors.Is(err, store.ErrNotFound)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
