package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"meeting-actions-go/internal/extractor"
	"meeting-actions-go/internal/redaction"
	"meeting-actions-go/internal/store"
	"meeting-actions-go/internal/transcription"
	"meeting-actions-go/internal/types"
)

type memStore struct {
	mu        sync.Mutex
	meetings  map[int64]types.Meeting
	tasks     map[int64][]types.Task
	history   map[int64][]types.MeetingStatus
	insertErr error
	saves     int
}

func newMemStore(meetings ...types.Meeting) *memStore {
	s := &memStore{meetings: map[int64]types.Meeting{}, tasks: map[int64][]types.Task{}, history: map[int64][]types.MeetingStatus{}}
	for _, m := range meetings {
		s.meetings[m.ID] = m
		s.history[m.ID] = []types.MeetingStatus{m.Status}
	}
	return s
}

func (s *memStore) LoadMeeting(ctx context.Context, id int64) (*types.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memStore) TransitionMeeting(ctx context.Context, m *types.Meeting, from types.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(m, from)
}

func (s *memStore) CompleteMeeting(ctx context.Context, m *types.Meeting, tasks []types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if err := s.transition(m, types.MeetingProcessing); err != nil {
		return err
	}
	s.tasks[m.ID] = append(s.tasks[m.ID], tasks...)
	return nil
}

func (s *memStore) transition(m *types.Meeting, from types.MeetingStatus) error {
	current, ok := s.meetings[m.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Status != from {
		return fmt.Errorf("meeting %d is %s: %w", m.ID, current.Status, store.ErrStatusChanged)
	}
	if m.Status == types.MeetingCompleted && (m.Transcript == nil || m.ProcessedAt == nil) {
		return errors.New("completed meeting without transcript or processed_at")
	}
	if m.Status != types.MeetingCompleted && m.ProcessedAt != nil {
		return errors.New("processed_at set on non-completed meeting")
	}
	s.saves++
	s.meetings[m.ID] = *m
	s.history[m.ID] = append(s.history[m.ID], m.Status)
	return nil
}

type fakeTranscriber struct {
	result types.TranscriptResult
	err    error
	panic  bool
	calls  int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioRef string, opts transcription.Options) (types.TranscriptResult, error) {
	f.calls++
	if f.panic {
		panic("decoder exploded")
	}
	return f.result, f.err
}

type recordingExtractor struct {
	text  string
	tasks []types.CandidateTask
}

func (r *recordingExtractor) ExtractDetailed(ctx context.Context, text string) extractor.Result {
	r.text = text
	return extractor.Result{Tasks: r.tasks, Source: extractor.SourceProvider}
}

func nullEntry() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

const scenarioText = "Alice needs to send the report by Friday. Bob's email is bob@example.com."

func scenarioTranscript() types.TranscriptResult {
	return types.TranscriptResult{
		Text:     scenarioText,
		Language: "en",
		Segments: []types.Segment{
			{ID: 0, Start: 0, End: 3, Text: "Alice needs to send the report by Friday."},
			{ID: 1, Start: 3, End: 5, Text: "Bob's email is bob@example.com."},
		},
	}
}

func pending(id int64, audio string) types.Meeting {
	return types.Meeting{ID: id, AudioRef: audio, Status: types.MeetingPending}
}

func assertHistory(t *testing.T, got []types.MeetingStatus, want ...types.MeetingStatus) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("status history %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status history %v, want %v", got, want)
		}
	}
}

func TestProcessScenarioHeuristicWithRedaction(t *testing.T) {
	st := newMemStore(pending(42, "meeting_42.wav"))
	fixed := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	p := New(st, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(),
		WithRedactor(redaction.New()),
		WithExtractor(extractor.New(nil, nullEntry())),
		WithClock(func() time.Time { return fixed }),
	)

	res := p.Process(context.Background(), 42)
	if res.Outcome != OutcomeCompleted || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	m := st.meetings[42]
	assertHistory(t, st.history[42], types.MeetingPending, types.MeetingProcessing, types.MeetingCompleted)
	if m.Transcript == nil || !strings.Contains(*m.Transcript, "[REDACTED_EMAIL]") || strings.Contains(*m.Transcript, "bob@example.com") {
		t.Fatalf("transcript not redacted: %v", m.Transcript)
	}
	if !m.IsRedacted || m.ProcessedAt == nil || !m.ProcessedAt.Equal(fixed) {
		t.Fatalf("unexpected meeting %+v", m)
	}
	for _, seg := range m.Structured.Segments {
		if strings.Contains(seg.Text, "bob@example.com") {
			t.Fatalf("segment not redacted: %q", seg.Text)
		}
	}

	tasks := st.tasks[42]
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %+v", tasks)
	}
	task := tasks[0]
	if !strings.HasPrefix(task.Description, "send the report by Friday") || task.Priority != types.PriorityMedium ||
		task.Confidence != 0.5 || task.Status != types.TaskPending {
		t.Fatalf("unexpected task %+v", task)
	}
	if res.ExtractionSource != extractor.SourceHeuristic || res.TasksCreated != 1 || res.Redactions != 1 {
		t.Fatalf("unexpected result detail %+v", res)
	}
}

func TestProcessRedactsBeforeExtraction(t *testing.T) {
	st := newMemStore(pending(1, "a.wav"))
	rec := &recordingExtractor{}
	tr := types.TranscriptResult{Text: "Call 555-123-4567 or mail carol@corp.example; token=abcdefghijklmnopqrstuvwx"}
	p := New(st, &fakeTranscriber{result: tr}, nullEntry(), WithRedactor(redaction.New()), WithExtractor(rec))

	p.Process(context.Background(), 1)
	for _, secret := range []string{"555-123-4567", "carol@corp.example", "abcdefghijklmnopqrstuvwx"} {
		if strings.Contains(rec.text, secret) {
			t.Fatalf("extractor saw %q in %q", secret, rec.text)
		}
	}
}

func TestProcessWithoutRedaction(t *testing.T) {
	st := newMemStore(pending(1, "a.wav"))
	p := New(st, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))

	p.Process(context.Background(), 1)
	m := st.meetings[1]
	if m.IsRedacted || m.Transcript == nil || *m.Transcript != scenarioText {
		t.Fatalf("unexpected meeting %+v", m)
	}
}

func TestProcessWithoutExtractor(t *testing.T) {
	st := newMemStore(pending(1, "a.wav"))
	p := New(st, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(), WithRedactor(redaction.New()))

	res := p.Process(context.Background(), 1)
	if res.Outcome != OutcomeCompleted || len(st.tasks[1]) != 0 {
		t.Fatalf("expected completion without tasks, got %+v / %v", res, st.tasks[1])
	}
}

func TestProcessMissingAudio(t *testing.T) {
	st := newMemStore(pending(7, "  "))
	tr := &fakeTranscriber{}
	p := New(st, tr, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))

	res := p.Process(context.Background(), 7)
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, ErrMissingAudio) {
		t.Fatalf("unexpected result %+v", res)
	}
	assertHistory(t, st.history[7], types.MeetingPending, types.MeetingProcessing, types.MeetingFailed)
	if tr.calls != 0 || len(st.tasks[7]) != 0 {
		t.Fatal("no transcription or tasks expected")
	}
}

func TestProcessTranscriptionUpstreamError(t *testing.T) {
	st := newMemStore(pending(3, "a.wav"))
	upstream := &transcription.Error{Category: transcription.UpstreamError, Op: "request", StatusCode: 502}
	p := New(st, &fakeTranscriber{err: upstream}, nullEntry(),
		WithRedactor(redaction.New()), WithExtractor(extractor.New(nil, nullEntry())))

	res := p.Process(context.Background(), 3)
	if res.Outcome != OutcomeFailed || !errors.Is(res.Err, transcription.ErrUpstream) {
		t.Fatalf("unexpected result %+v", res)
	}
	m := st.meetings[3]
	if m.Status != types.MeetingFailed || m.Transcript != nil || m.ProcessedAt != nil {
		t.Fatalf("unexpected meeting %+v", m)
	}
	if len(st.tasks[3]) != 0 {
		t.Fatal("tasks inserted after transcription failure")
	}
}

func TestProcessInsertFailureLeavesNoTranscript(t *testing.T) {
	st := newMemStore(pending(5, "a.wav"))
	st.insertErr = errors.New("disk full")
	p := New(st, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))

	res := p.Process(context.Background(), 5)
	if res.Outcome != OutcomeFailed || res.TasksCreated != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if m := st.meetings[5]; m.Status != types.MeetingFailed || m.Transcript != nil {
		t.Fatalf("unexpected meeting %+v", m)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	st := newMemStore(pending(9, "a.wav"))
	res := New(st, &fakeTranscriber{panic: true}, nullEntry()).Process(context.Background(), 9)
	if res.Outcome != OutcomeFailed || res.Err == nil || !strings.Contains(res.Err.Error(), "decoder exploded") {
		t.Fatalf("unexpected result %+v", res)
	}
	if st.meetings[9].Status != types.MeetingFailed {
		t.Fatal("meeting left outside failed after panic")
	}
}

func TestProcessAbsentMeetingIsNoop(t *testing.T) {
	st := newMemStore()
	tr := &fakeTranscriber{}
	res := New(st, tr, nullEntry()).Process(context.Background(), 404)
	if res.Outcome != OutcomeSkipped || res.Err != nil || st.saves != 0 || tr.calls != 0 {
		t.Fatalf("expected silent no-op, got %+v", res)
	}
}

func TestProcessTerminalMeetingIsNoop(t *testing.T) {
	for _, status := range []types.MeetingStatus{types.MeetingCompleted, types.MeetingFailed, types.MeetingProcessing} {
		t.Run(string(status), func(t *testing.T) {
			m := pending(1, "a.wav")
			m.Status = status
			st := newMemStore(m)
			tr := &fakeTranscriber{result: scenarioTranscript()}

			res := New(st, tr, nullEntry()).Process(context.Background(), 1)
			if res.Outcome != OutcomeSkipped || res.Status != status {
				t.Fatalf("unexpected result %+v", res)
			}
			if st.saves != 0 || tr.calls != 0 || st.meetings[1].Status != status {
				t.Fatal("terminal meeting was touched")
			}
		})
	}
}

func TestProcessTwiceIsIdempotent(t *testing.T) {
	st := newMemStore(pending(1, "a.wav"))
	p := New(st, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))

	first := p.Process(context.Background(), 1)
	second := p.Process(context.Background(), 1)
	if first.Outcome != OutcomeCompleted || second.Outcome != OutcomeSkipped {
		t.Fatalf("unexpected outcomes %s, %s", first.Outcome, second.Outcome)
	}
	if len(st.tasks[1]) != 1 {
		t.Fatalf("second run inserted tasks: %d", len(st.tasks[1]))
	}
}

func TestProcessAppliesCandidateDefaults(t *testing.T) {
	st := newMemStore(pending(1, "a.wav"))
	high := 0.8
	rec := &recordingExtractor{tasks: []types.CandidateTask{
		{Description: "Ship the beta", Owner: "Dana", Deadline: "2025-04-01", Priority: "high", Confidence: &high},
		{Description: "Draft the FAQ", Deadline: "next Tuesday"},
		{Description: "  "},
	}}
	p := New(st, &fakeTranscriber{result: types.TranscriptResult{Text: "x"}}, nullEntry(), WithExtractor(rec))

	p.Process(context.Background(), 1)
	tasks := st.tasks[1]
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", tasks)
	}
	if tasks[0].Deadline == nil || tasks[0].Deadline.Format("2006-01-02") != "2025-04-01" || tasks[0].Priority != types.PriorityHigh || tasks[0].OwnerName != "Dana" {
		t.Fatalf("unexpected first task %+v", tasks[0])
	}
	if tasks[1].Deadline != nil || tasks[1].Priority != types.PriorityMedium || tasks[1].Confidence != 0 {
		t.Fatalf("unexpected second task %+v", tasks[1])
	}
}

func TestProcessWithSQLiteStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	ok, _ := s.CreateMeeting(ctx, "standup", "meeting_42.wav")
	noAudio, _ := s.CreateMeeting(ctx, "empty", "")

	p := New(s, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(),
		WithRedactor(redaction.New()), WithExtractor(extractor.New(nil, nullEntry())))

	if res := p.Process(ctx, ok.ID); res.Outcome != OutcomeCompleted {
		t.Fatalf("unexpected result %+v", res)
	}
	if res := p.Process(ctx, noAudio.ID); res.Outcome != OutcomeFailed {
		t.Fatalf("unexpected result %+v", res)
	}

	got, _ := s.LoadMeeting(ctx, ok.ID)
	if got.Status != types.MeetingCompleted || !got.IsRedacted || got.ProcessedAt == nil {
		t.Fatalf("unexpected stored meeting %+v", got)
	}
	tasks, _ := s.ListTasks(ctx, ok.ID)
	if len(tasks) != 1 || tasks[0].Confidence != 0.5 {
		t.Fatalf("unexpected stored tasks %+v", tasks)
	}

	failed, _ := s.LoadMeeting(ctx, noAudio.ID)
	if failed.Status != types.MeetingFailed || failed.Transcript != nil {
		t.Fatalf("unexpected failed meeting %+v", failed)
	}
	if err := s.Requeue(ctx, noAudio.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if res := p.Process(ctx, noAudio.ID); res.Outcome != OutcomeFailed {
		t.Fatalf("requeued meeting should run again, got %+v", res)
	}
}

// gatedTranscriber blocks each call until its audio reference is released.
type gatedTranscriber struct {
	entered chan string
	results map[string]types.TranscriptResult
	errs    map[string]error

	mu    sync.Mutex
	gates map[string]chan struct{}
	calls int
}

func newGatedTranscriber() *gatedTranscriber {
	return &gatedTranscriber{
		entered: make(chan string, 8),
		results: map[string]types.TranscriptResult{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (g *gatedTranscriber) gate(ref string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[ref]
	if !ok {
		ch = make(chan struct{})
		g.gates[ref] = ch
	}
	return ch
}

func (g *gatedTranscriber) release(ref string) { close(g.gate(ref)) }

func (g *gatedTranscriber) Transcribe(ctx context.Context, audioRef string, opts transcription.Options) (types.TranscriptResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- audioRef
	select {
	case <-g.gate(audioRef):
	case <-ctx.Done():
		return types.TranscriptResult{}, ctx.Err()
	}
	return g.results[audioRef], g.errs[audioRef]
}

func waitEntered(t *testing.T, g *gatedTranscriber, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-g.entered:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d runs reached transcription", i, n)
		}
	}
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
		return Result{}
	}
}

func openSQLite(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProcessLosesMeetingToStuckRecovery(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "board", "board.wav")

	g := newGatedTranscriber()
	g.results["board.wav"] = scenarioTranscript()
	p := New(s, g, nullEntry(), WithRedactor(redaction.New()), WithExtractor(extractor.New(nil, nullEntry())))

	done := make(chan Result, 1)
	go func() { done <- p.Process(ctx, m.ID) }()
	waitEntered(t, g, 1)

	n, err := s.FailStuckProcessing(ctx, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("FailStuckProcessing = %d, %v", n, err)
	}
	g.release("board.wav")

	res := waitResult(t, done)
	if res.Outcome != OutcomeSkipped || !errors.Is(res.Err, store.ErrStatusChanged) || res.Status != types.MeetingFailed {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := s.LoadMeeting(ctx, m.ID)
	if got.Status != types.MeetingFailed || got.Transcript != nil || got.ProcessedAt != nil {
		t.Fatalf("failed meeting moved on: %+v", got)
	}
	if tasks, _ := s.ListTasks(ctx, m.ID); len(tasks) != 0 {
		t.Fatalf("tasks stored for a discarded run: %+v", tasks)
	}
}

func TestProcessInterleavedMeetings(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	a, _ := s.CreateMeeting(ctx, "standup", "a.wav")
	b, _ := s.CreateMeeting(ctx, "budget", "b.wav")
	c, _ := s.CreateMeeting(ctx, "broken", "c.wav")

	g := newGatedTranscriber()
	g.results["a.wav"] = scenarioTranscript()
	g.results["b.wav"] = types.TranscriptResult{Text: "Carol will draft the budget by Monday."}
	g.errs["c.wav"] = &transcription.Error{Category: transcription.UpstreamError, Op: "request", StatusCode: 503}
	p := New(s, g, nullEntry(), WithRedactor(redaction.New()), WithExtractor(extractor.New(nil, nullEntry())))

	done := make(chan Result, 3)
	for _, m := range []*types.Meeting{a, b, c} {
		id := m.ID
		go func() { done <- p.Process(ctx, id) }()
	}
	waitEntered(t, g, 3)
	for _, ref := range []string{"c.wav", "b.wav", "a.wav"} {
		g.release(ref)
	}

	outcomes := map[int64]Outcome{}
	for i := 0; i < 3; i++ {
		res := waitResult(t, done)
		outcomes[res.MeetingID] = res.Outcome
	}
	if outcomes[a.ID] != OutcomeCompleted || outcomes[b.ID] != OutcomeCompleted || outcomes[c.ID] != OutcomeFailed {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}

	gotA, _ := s.LoadMeeting(ctx, a.ID)
	if gotA.Transcript == nil || !strings.Contains(*gotA.Transcript, "[REDACTED_EMAIL]") {
		t.Fatalf("unexpected transcript for a: %+v", gotA)
	}
	gotB, _ := s.LoadMeeting(ctx, b.ID)
	if gotB.Transcript == nil || *gotB.Transcript != "Carol will draft the budget by Monday." || gotB.IsRedacted {
		t.Fatalf("unexpected transcript for b: %+v", gotB)
	}
	gotC, _ := s.LoadMeeting(ctx, c.ID)
	if gotC.Status != types.MeetingFailed || gotC.Transcript != nil {
		t.Fatalf("unexpected failed meeting %+v", gotC)
	}

	all, _ := s.ListTasks(ctx, 0)
	if len(all) != 2 {
		t.Fatalf("expected one task per completed meeting, got %+v", all)
	}
	for _, task := range all {
		want := map[int64]string{a.ID: "send the report", b.ID: "draft the budget"}[task.MeetingID]
		if want == "" || !strings.HasPrefix(task.Description, want) {
			t.Fatalf("task %q attributed to meeting %d", task.Description, task.MeetingID)
		}
	}
}

// staleStore serves a meeting as it looked before another run claimed it.
type staleStore struct {
	*store.Store
	snapshot types.Meeting
}

func (s *staleStore) LoadMeeting(ctx context.Context, id int64) (*types.Meeting, error) {
	m := s.snapshot
	return &m, nil
}

func TestProcessSameMeetingClaimedOnce(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	m, _ := s.CreateMeeting(ctx, "retro", "retro.wav")

	first := New(s, &fakeTranscriber{result: scenarioTranscript()}, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))
	if res := first.Process(ctx, m.ID); res.Outcome != OutcomeCompleted {
		t.Fatalf("unexpected first run %+v", res)
	}

	tr := &fakeTranscriber{result: scenarioTranscript()}
	late := New(&staleStore{Store: s, snapshot: *m}, tr, nullEntry(), WithExtractor(extractor.New(nil, nullEntry())))
	res := late.Process(ctx, m.ID)
	if res.Outcome != OutcomeSkipped || !errors.Is(res.Err, store.ErrStatusChanged) || tr.calls != 0 {
		t.Fatalf("late run should lose the claim, got %+v (calls %d)", res, tr.calls)
	}

	got, _ := s.LoadMeeting(ctx, m.ID)
	if got.Status != types.MeetingCompleted {
		t.Fatalf("completed meeting regressed to %s", got.Status)
	}
	if tasks, _ := s.ListTasks(ctx, m.ID); len(tasks) != 1 {
		t.Fatalf("expected tasks of the first run only, got %+v", tasks)
	}
}
