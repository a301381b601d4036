package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/orchestrator"
)

type stubForm struct {
	pages   int
	invalid map[int][]string
	events  []Event
	bus     Bus
	touched []int
}

func newStubForm(pages int) *stubForm {
	f := &stubForm{pages: pages, invalid: map[int][]string{}}
	f.bus.Subscribe(func(e Event) { f.events = append(f.events, e) })
	return f
}

func (f *stubForm) PageCount() int { return f.pages }

func (f *stubForm) result(pages ...int) orchestrator.Result {
	keys := []string{}
	for _, p := range pages {
		keys = append(keys, f.invalid[p]...)
	}
	return orchestrator.Result{IsValid: len(keys) == 0, InvalidKeys: keys}
}

func (f *stubForm) Validate(page int) (orchestrator.Result, error) {
	if page < 0 || page >= f.pages {
		return orchestrator.Result{}, orchestrator.ErrPageOutOfRange
	}
	f.touched = append(f.touched, page)
	if page == f.pages-1 {
		all := make([]int, f.pages)
		for i := range all {
			all[i] = i
		}
		return f.result(all...), nil
	}
	return f.result(page), nil
}

func (f *stubForm) CheckPage(page int) (orchestrator.Result, error) {
	return f.result(page), nil
}

func (f *stubForm) Values() map[string]any { return map[string]any{"name": "Ann"} }

func (f *stubForm) EmitPageVisited(page int) {
	f.bus.Emit(Event{Kind: EventVisited, Page: page})
}

func (f *stubForm) EmitPageValidated(page int) {
	f.bus.Emit(Event{Kind: EventValidated, Page: page})
}

func TestNextBlocksOnInvalidPage(t *testing.T) {
	t.Parallel()

	f := newStubForm(3)
	f.invalid[0] = []string{"name"}
	n := New(f)

	step, err := n.Next(context.Background())
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if step.Moved || n.Current() != 0 {
		t.Fatalf("navigator should stay on an invalid page: %+v", step)
	}
	if diff := cmp.Diff([]string{"name"}, step.Result.InvalidKeys); diff != "" {
		t.Fatalf("invalid keys mismatch (-want +got):\n%s", diff)
	}

	delete(f.invalid, 0)
	step, err = n.Next(context.Background())
	if err != nil || !step.Moved || step.Page != 1 {
		t.Fatalf("expected to advance, got %+v, %v", step, err)
	}

	want := []Event{
		{Kind: EventVisited, Page: 0},
		{Kind: EventVisited, Page: 1},
		{Kind: EventValidated, Page: 0},
	}
	if diff := cmp.Diff(want, f.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestPreviousAndGoTo(t *testing.T) {
	t.Parallel()

	f := newStubForm(3)
	n := New(f)
	if _, err := n.Previous(); !errors.Is(err, ErrNoPreviousPage) {
		t.Fatalf("expected ErrNoPreviousPage, got %v", err)
	}
	if err := n.GoTo(2); !errors.Is(err, ErrNotVisited) {
		t.Fatalf("expected ErrNotVisited, got %v", err)
	}

	_, _ = n.Next(context.Background())
	_, _ = n.Next(context.Background())
	if !n.IsLast() {
		t.Fatalf("expected to reach the last page")
	}
	if _, err := n.Next(context.Background()); !errors.Is(err, ErrNoNextPage) {
		t.Fatalf("expected ErrNoNextPage, got %v", err)
	}
	if page, err := n.Previous(); err != nil || page != 1 {
		t.Fatalf("Previous = %d, %v", page, err)
	}
	if err := n.GoTo(2); err != nil {
		t.Fatalf("visited page should be reachable: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, n.VisitedPages()); diff != "" {
		t.Fatalf("visited pages mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxValidatedIndexStopsAtFirstInvalidPage(t *testing.T) {
	t.Parallel()

	f := newStubForm(4)
	f.invalid[2] = []string{"accountNumber"}
	n := New(f)

	if got := n.MaxValidatedIndex(); got != 1 {
		t.Fatalf("MaxValidatedIndex = %d, want 1", got)
	}
	f.invalid[0] = []string{"name"}
	if got := n.MaxValidatedIndex(); got != -1 {
		t.Fatalf("MaxValidatedIndex = %d, want -1", got)
	}
	if n.CanLeavePage() {
		t.Fatalf("CanLeavePage should follow the current page")
	}
	if len(f.touched) != 0 {
		t.Fatalf("stepper checks must not run the marking validation")
	}
}

func TestHooksGateAdvancing(t *testing.T) {
	t.Parallel()

	f := newStubForm(2)
	boom := errors.New("premium service unavailable")
	var seen []int
	n := New(f, WithHook(func(ctx context.Context, page int, values map[string]any) error {
		seen = append(seen, page)
		if values["name"] != "Ann" {
			t.Errorf("hook should receive form values, got %v", values)
		}
		return boom
	}))

	_, err := n.Next(context.Background())
	if !errors.Is(err, ErrHookFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	if n.Current() != 0 {
		t.Fatalf("failed hook must keep the user on the page")
	}
	if diff := cmp.Diff([]int{0}, seen); diff != "" {
		t.Fatalf("hook pages mismatch (-want +got):\n%s", diff)
	}
}

func TestHookFieldErrorsSurviveWrapping(t *testing.T) {
	t.Parallel()

	f := newStubForm(2)
	n := New(f, WithHook(func(context.Context, int, map[string]any) error {
		return FieldErrors{"/body/zip": {"unknown zip"}, "form": {"quote expired"}}
	}))

	_, err := n.Next(context.Background())
	if !errors.Is(err, ErrHookFailed) {
		t.Fatalf("expected ErrHookFailed, got %v", err)
	}
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors in chain, got %v", err)
	}
	if diff := cmp.Diff([]string{"unknown zip"}, fe["/body/zip"]); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if got, want := fe.Error(), "/body/zip: unknown zip, form: quote expired"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	f := newStubForm(2)
	f.invalid[0] = []string{"name"}
	n := New(f)

	sub, err := n.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.Values != nil || sub.Result.IsValid {
		t.Fatalf("invalid submission must not carry values: %+v", sub)
	}

	delete(f.invalid, 0)
	sub, _ = n.Submit(context.Background())
	if diff := cmp.Diff(map[string]any{"name": "Ann"}, sub.Values); diff != "" {
		t.Fatalf("submitted values mismatch (-want +got):\n%s", diff)
	}
}

func TestStartPageMarksEarlierPagesVisited(t *testing.T) {
	t.Parallel()

	f := newStubForm(3)
	n := New(f, WithStartPage(5))
	if n.Current() != 2 {
		t.Fatalf("start page should clamp to the last page, got %d", n.Current())
	}
	if !n.CanGoTo(0) || !n.CanGoTo(1) {
		t.Fatalf("earlier pages should be reachable")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()

	var bus Bus
	var visited, validated []int
	stop := bus.OnVisited(func(p int) { visited = append(visited, p) })
	bus.OnValidated(func(p int) { validated = append(validated, p) })

	bus.Emit(Event{Kind: EventVisited, Page: 1})
	stop()
	bus.Emit(Event{Kind: EventVisited, Page: 2})
	bus.Emit(Event{Kind: EventValidated, Page: 1})

	if diff := cmp.Diff([]int{1}, visited); diff != "" {
		t.Fatalf("visited mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, validated); diff != "" {
		t.Fatalf("validated mismatch (-want +got):\n%s", diff)
	}
}
