package advice

import (
	"context"
	"iter"
	"time"

	"energy-advisor/internal/homes"
	"energy-advisor/internal/llm"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testHome() homes.Home {
	return homes.Home{
		ID:                "3f0c7a52-7a1b-4c55-9d2e-6d8f1b2a9c10",
		SizeSqft:          1800,
		YearBuilt:         1978,
		HeatingType:       homes.HeatingGas,
		InsulationLevel:   homes.InsulationMinimal,
		WindowsType:       homes.WindowsSingle,
		RoofType:          homes.RoofPitched,
		NumOccupants:      4,
		MonthlyEnergyBill: 245.5,
		Location:          "Lyon",
		CreatedAt:         fixedNow.Add(-24 * time.Hour),
	}
}

// fakeGenerator replays fragments and then an optional error.
type fakeGenerator struct {
	fragments []llm.Fragment
	err       error

	prompt string
	opts   llm.Options
	pulled int
}

func (g *fakeGenerator) StreamGenerate(ctx context.Context, prompt string, opts llm.Options) iter.Seq2[llm.Fragment, error] {
	g.prompt = prompt
	g.opts = opts
	return func(yield func(llm.Fragment, error) bool) {
		for _, f := range g.fragments {
			g.pulled++
			if !yield(f, nil) {
				return
			}
		}
		if g.err != nil {
			yield(llm.Fragment{}, g.err)
		}
	}
}

// blockingGenerator yields nothing until ctx ends and then reports the
// classified context error, like a stalled backend.
type blockingGenerator struct{}

func (blockingGenerator) StreamGenerate(ctx context.Context, _ string, _ llm.Options) iter.Seq2[llm.Fragment, error] {
	return func(yield func(llm.Fragment, error) bool) {
		<-ctx.Done()
		if ctx.Err() == context.DeadlineExceeded {
			yield(llm.Fragment{}, llm.Classify(ctx.Err()))
			return
		}
		yield(llm.Fragment{}, ctx.Err())
	}
}

// tokenize splits text into small fragments followed by a terminal one.
func tokenize(text string, size int) []llm.Fragment {
	var out []llm.Fragment
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		out = append(out, llm.Fragment{Text: text[:n]})
		text = text[n:]
	}
	return append(out, llm.Fragment{Done: true})
}

type eventLog struct {
	events []Event
}

func (l *eventLog) emit(ev Event) error {
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []EventType {
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestStreamer(gen llm.Generator) *Streamer {
	return &Streamer{
		Generator: gen,
		Model:     "test-model",
		Timeout:   time.Second,
		Now:       func() time.Time { return fixedNow },
	}
}

const fourRecommendations = `{"recommendations":[
{"id":"R1","priority":"High","details":"Insulate the attic with 300mm mineral wool. Reduces heat loss through the roof.","estimate_cost":"4,000-6,000 €","saving_cost":"650 €/year"},
{"id":"R2","priority":"High","details":"Replace the gas boiler with an air-source heat pump. Cuts heating demand.","estimate_cost":"9,000-12,000 €","saving_cost":"900 €/year"},
{"id":"R3","priority":"Medium","details":"Replace single glazing with double glazing.","estimate_cost":"5,000 €","saving_cost":"400 €/year"},
{"id":"R4","priority":"Low","details":"Install rooftop solar photovoltaic system","estimate_cost":"7,000 €","saving_cost":"350 €/year"}
]}`
