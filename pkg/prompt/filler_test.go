package prompt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	infoMessages []string
	selectOpts   [][]string
	inputPos     int
	selectPos    int
	multiPos     int
	confirmPos   int
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	s.selectOpts = append(s.selectOpts, cfg.Options)
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	s.selectOpts = append(s.selectOpts, cfg.Options)
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	return "", errors.New("no textarea scripted")
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func mountTender(t *testing.T, catalog options.Catalog) (*engine.Form, *testsupport.MemoryStore) {
	t.Helper()
	store := testsupport.NewMemoryStore()
	eng := engine.New(testsupport.LoadRegistry(t, testsupport.TenderFS()),
		engine.WithCatalog(catalog),
		engine.WithEntityStore(store),
	)
	form, err := eng.Mount(context.Background(), "tender.edit", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { _ = form.Close() })
	return form, store
}

func TestFill_WalksPlanAndRepromptsRejectedAnswers(t *testing.T) {
	form, store := mountTender(t, testsupport.TenderCatalog())
	driver := &stubDriver{
		inputs:    []string{"", "Bridge", "abc", "12.5"},
		selectIdx: []int{1},
		multiIdx:  [][]int{{1}},
	}

	values, err := New(WithDriver(driver)).Fill(context.Background(), form)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	want := map[string]any{
		"title":       "Bridge",
		"budget":      "12.5",
		"teamID":      "2",
		"employeeIDs": []string{"p-3"},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	wantOpts := [][]string{{"Bridges", "Tunnels"}, {"Grace Hopper", "Edsger Dijkstra"}}
	if diff := cmp.Diff(wantOpts, driver.selectOpts); diff != "" {
		t.Fatalf("the dependent list must follow the team answer (-want +got):\n%s", diff)
	}
	wantInfo := []string{
		"Edit tender",
		"== Summary ==",
		"Invalid Tender title: Tender title is required",
		"Invalid Budget: Budget must be a number",
		"== Staffing ==",
	}
	if diff := cmp.Diff(wantInfo, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}

	result, err := form.Submit(context.Background(), values)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Created || result.Values["budget"] != 12.5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(store.Patches()) != 0 {
		t.Fatalf("a new entity must be created, not patched")
	}
}

func TestFill_RetriesFailedResolution(t *testing.T) {
	var calls atomic.Int32
	base := testsupport.TenderCatalog()
	flaky := options.CatalogFunc(func(ctx context.Context, key string, filter map[string]any) ([]map[string]any, error) {
		if key == "teams.all" && calls.Add(1) == 1 {
			return nil, errors.New("upstream timeout")
		}
		return base.Query(ctx, key, filter)
	})
	form, _ := mountTender(t, flaky)
	driver := &stubDriver{
		inputs:    []string{"Bridge", ""},
		selectIdx: []int{0},
		multiIdx:  [][]int{{0}},
		confirm:   []bool{true},
	}

	values, err := New(WithDriver(driver), WithSections("summary", "staffing")).Fill(context.Background(), form)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if values["teamID"] != "1" {
		t.Fatalf("expected the retried selection, got %v", values)
	}
	if driver.confirmPos != 1 {
		t.Fatalf("expected one retry prompt, got %d", driver.confirmPos)
	}
}

func TestFill_Aborted(t *testing.T) {
	form, _ := mountTender(t, testsupport.TenderCatalog())
	driver := &abortingDriver{stubDriver: &stubDriver{}}

	if _, err := New(WithDriver(driver)).Fill(context.Background(), form); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

type abortingDriver struct {
	*stubDriver
}

func (d *abortingDriver) Input(context.Context, InputConfig) (string, error) {
	return "", ErrAborted
}
