package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"energy-advisor/internal/llm"
	"energy-advisor/internal/llm/ollama"
	"energy-advisor/internal/shared/telemetry"
)

func TestStreamEmitsRecommendationsInOrder(t *testing.T) {
	gen := &fakeGenerator{fragments: tokenize(fourRecommendations, 7)}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	want := []EventType{EventConnected, EventRecommendation, EventRecommendation, EventRecommendation, EventRecommendation, EventComplete}
	got := log.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if log.events[0].HomeID != testHome().ID {
		t.Fatalf("expected connected event to carry home id, got %q", log.events[0].HomeID)
	}

	wantCategories := []Category{CategoryInsulation, CategoryHeating, CategoryWindows, CategoryRenewable}
	for i, ev := range log.events[1:5] {
		rec := ev.Recommendation
		if rec == nil {
			t.Fatalf("event %d has no recommendation", i+1)
		}
		if rec.ID != fmt.Sprintf("R%d", i+1) {
			t.Fatalf("event %d id = %q", i+1, rec.ID)
		}
		if rec.Category != wantCategories[i] {
			t.Fatalf("event %d category = %q, want %q", i+1, rec.Category, wantCategories[i])
		}
	}
	first := log.events[1].Recommendation
	if first.Title != "Insulate the attic with 300mm mineral wool" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.Priority != PriorityHigh || first.EstimatedCost != "4,000-6,000 €" || first.EstimatedSavings != "650 €/year" {
		t.Fatalf("unexpected recommendation %+v", first)
	}
	if log.events[4].Recommendation.Priority != PriorityLow {
		t.Fatalf("expected low priority, got %q", log.events[4].Recommendation.Priority)
	}
}

func TestStreamSendsPromptWithSamplingOptions(t *testing.T) {
	gen := &fakeGenerator{fragments: tokenize(`{"recommendations":[]}`, 5)}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if gen.prompt != BuildPrompt(testHome(), fixedNow) {
		t.Fatalf("generator received a different prompt")
	}
	if gen.opts != llm.DefaultOptions() {
		t.Fatalf("unexpected options %+v", gen.opts)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventComplete}) {
		t.Fatalf("unexpected events %v", log.types())
	}
}

func TestStreamParsesOnlyAfterTerminalFragment(t *testing.T) {
	frags := []llm.Fragment{
		{Text: `{"recommendations":[{"details":"Seal drafts around doors."}]}`},
		{Text: ``},
		{Text: ` `, Done: true},
		{Text: `trailing garbage`},
	}
	gen := &fakeGenerator{fragments: frags}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if gen.pulled != 3 {
		t.Fatalf("expected iteration to stop at the terminal fragment, pulled %d", gen.pulled)
	}
	if len(log.events) != 3 || log.events[1].Recommendation.Category != CategoryWindows {
		t.Fatalf("unexpected events %+v", log.events)
	}
}

func TestStreamInvalidJSONCompletesWithoutRecommendations(t *testing.T) {
	gen := &fakeGenerator{fragments: tokenize(`{"recommendations": [ {"id": `, 4)}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventComplete}) {
		t.Fatalf("unexpected events %v", log.types())
	}
}

func TestStreamConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := ollama.NewClient(url, "llama3.1", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var log eventLog
	if err := newTestStreamer(client).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventError}) {
		t.Fatalf("unexpected events %v", log.types())
	}
	if log.events[1].Error != msgUnreachable {
		t.Fatalf("unexpected error message %q", log.events[1].Error)
	}
}

func TestStreamBackendStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.1' not found"}`))
	}))
	defer server.Close()

	client, _ := ollama.NewClient(server.URL, "llama3.1", nil)
	var log eventLog
	if err := newTestStreamer(client).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventError}) {
		t.Fatalf("unexpected events %v", log.types())
	}
	if log.events[1].Error != `Backend error: {"error":"model 'llama3.1' not found"}` {
		t.Fatalf("unexpected error message %q", log.events[1].Error)
	}
}

func TestStreamTimeout(t *testing.T) {
	s := newTestStreamer(blockingGenerator{})
	s.Timeout = 20 * time.Millisecond
	var log eventLog

	if err := s.Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventError}) {
		t.Fatalf("unexpected events %v", log.types())
	}
	if log.events[1].Error != msgTimeout {
		t.Fatalf("unexpected error message %q", log.events[1].Error)
	}
}

func TestStreamEndsWithoutTerminalFragment(t *testing.T) {
	gen := &fakeGenerator{fragments: []llm.Fragment{{Text: `{"recommendations":`}}}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	last := log.events[len(log.events)-1]
	if last.Type != EventError || last.Error != msgIncomplete {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}

func TestStreamUnexpectedError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("ollama: out of memory")}
	var log eventLog

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	last := log.events[len(log.events)-1]
	if last.Error != "Unexpected error: ollama: out of memory" {
		t.Fatalf("unexpected error message %q", last.Error)
	}
}

func TestStreamSkipsInvalidCategoryAndKeepsPositions(t *testing.T) {
	text := `{"recommendations":[
		{"details":"Add cavity wall insulation."},
		{"details":"Plant a hedge.","category":"garden"},
		{"details":"Upgrade to a condensing boiler."}
	]}`
	gen := &fakeGenerator{fragments: tokenize(text, 16)}
	var log eventLog
	before := counterValue(t, "advice_recommendations_skipped_total")

	if err := newTestStreamer(gen).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected, EventRecommendation, EventRecommendation, EventComplete}) {
		t.Fatalf("unexpected events %v", log.types())
	}
	if log.events[1].Recommendation.ID != "R1" || log.events[2].Recommendation.ID != "R3" {
		t.Fatalf("expected ids R1 and R3, got %q and %q", log.events[1].Recommendation.ID, log.events[2].Recommendation.ID)
	}
	if got := counterValue(t, "advice_recommendations_skipped_total") - before; got != 1 {
		t.Fatalf("expected 1 skipped recommendation, got %v", got)
	}
}

func TestStreamStopsWhenEmitFails(t *testing.T) {
	gen := &fakeGenerator{fragments: tokenize(fourRecommendations, 32)}
	gone := errors.New("client gone")
	var events []Event
	emit := func(ev Event) error {
		events = append(events, ev)
		if ev.Type == EventRecommendation {
			return gone
		}
		return nil
	}

	err := newTestStreamer(gen).Stream(context.Background(), testHome(), emit)
	if !errors.Is(err, gone) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected no events after the failed emit, got %d", len(events))
	}
}

func TestStreamCancelledByClientReleasesBackend(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requested := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"response":"{\"recommendations\":","done":false}`)
		w.(http.Flusher).Flush()
		close(requested)
		<-r.Context().Done()
	}))
	defer server.Close()
	transport := &http.Transport{}
	defer transport.CloseIdleConnections()

	client, err := ollama.NewClient(server.URL, "llama3.1", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-requested
		cancel()
	}()

	var log eventLog
	err = newTestStreamer(client).Stream(ctx, testHome(), log.emit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fmt.Sprint(log.types()) != fmt.Sprint([]EventType{EventConnected}) {
		t.Fatalf("expected only the connected event, got %v", log.types())
	}
}

func TestStreamRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newTestStreamer(&fakeGenerator{fragments: tokenize(fourRecommendations, 64)})
	s.Tracer = tp.Tracer("test")
	var log eventLog
	if err := s.Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "advice.stream" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["home.id"].AsString() != testHome().ID {
		t.Fatalf("missing home.id attribute: %v", attrs)
	}
	if attrs["advice.outcome"].AsString() != "completed" {
		t.Fatalf("unexpected outcome %v", attrs["advice.outcome"])
	}
	if attrs["advice.recommendations"].AsInt64() != 4 {
		t.Fatalf("unexpected recommendation count %v", attrs["advice.recommendations"])
	}
}

func TestStreamTitlesNeverExceedLimit(t *testing.T) {
	long := strings.Repeat("Replace every radiator valve ", 5)
	text := fmt.Sprintf(`{"recommendations":[{"details":%q},{"title":%q,"details":"x"}]}`, long, long)
	var log eventLog
	if err := newTestStreamer(&fakeGenerator{fragments: tokenize(text, 9)}).Stream(context.Background(), testHome(), log.emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	for _, ev := range log.events {
		if ev.Recommendation == nil {
			continue
		}
		title := ev.Recommendation.Title
		if len([]rune(title)) > 60 || !strings.HasSuffix(title, "...") {
			t.Fatalf("unexpected title %q", title)
		}
	}
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestStreamDurationUsesWallClockWhenNowIsInjected(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := telemetry.L()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	gen := &fakeGenerator{fragments: tokenize(fourRecommendations, 11)}
	streamer := newTestStreamer(gen)
	streamer.Now = func() time.Time { return time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC) }

	if err := streamer.Stream(context.Background(), testHome(), (&eventLog{}).emit); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	entries := logs.FilterMessage("advice.stream.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	ms, ok := entries[0].ContextMap()["duration_ms"].(int64)
	if !ok {
		t.Fatalf("expected int64 duration_ms, got %T", entries[0].ContextMap()["duration_ms"])
	}
	if ms < 0 || ms > 10_000 {
		t.Fatalf("duration_ms = %d, want a wall-clock duration", ms)
	}
}
