package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"storyboarder/internal/config"
	"storyboarder/internal/events"
	"storyboarder/internal/jobs"
	"storyboarder/internal/services"
	"storyboarder/internal/storyboard"
	"storyboarder/internal/testsupport"
	"storyboarder/internal/transcript"
)

func stormRows() []transcript.RawRow {
	var raw []transcript.RawRow
	for _, r := range testsupport.StormTranscript() {
		raw = append(raw, transcript.RawRow{Timestamp: transcript.TimestampString(r.Timestamp), Text: r.Text})
	}
	return raw
}

func newService(t *testing.T, completer *testsupport.Completer, opts ...storyboard.GeneratorOption) (*StoryboardService, *jobs.Store, *events.Registry) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStoryboardDefaults("watercolor", "a harbour town", "Keeper"))
	store := testsupport.MustOpenStore(t, cfg)
	registry := events.NewRegistry(16)
	svc := NewStoryboardService(store, registry, storyboard.NewGenerator(completer, opts...), cfg.Storyboard, nil)
	return svc, store, registry
}

func TestPlan(t *testing.T) {
	svc := NewStoryboardService(nil, nil, nil, config.Storyboard{}, nil)
	resp, err := svc.Plan(stormRows())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if resp.Seconds != 5 || len(resp.Clips) != 2 || resp.Clips[1].Start != 2 {
		t.Fatalf("unexpected plan: %#v", resp)
	}

	bad := []transcript.RawRow{{Timestamp: transcript.TimestampString("nope"), Text: "x"}}
	if _, err := svc.Plan(bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateAppliesDefaultsAndPersists(t *testing.T) {
	completer := &testsupport.Completer{}
	svc, store, registry := newService(t, completer)

	resp, err := svc.Generate(context.Background(), GenerateRequest{Transcript: stormRows(), Source: "cli"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Job.Status != string(jobs.StatusCompleted) || resp.Job.Source != "cli" || resp.Job.Attempts != 1 {
		t.Fatalf("unexpected job: %#v", resp.Job)
	}
	if resp.Job.AnimationStyle != "watercolor" || resp.Job.Setting != "a harbour town" || resp.Job.FocalPoints[0] != "Keeper" {
		t.Fatalf("defaults not applied: %#v", resp.Job)
	}
	if resp.Storyboard == nil || len(resp.Storyboard.Rows) != 2 {
		t.Fatalf("expected storyboard rows, got %#v", resp.Storyboard)
	}

	stored, err := store.Get(context.Background(), resp.Job.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v", err)
	}
	var result storyboard.Result
	if err := json.Unmarshal(stored.ResultJSON, &result); err != nil || len(result.Clips) != 2 {
		t.Fatalf("stored result invalid: %v %s", err, stored.ResultJSON)
	}
	if registry.Len() != 0 {
		t.Fatalf("finished stream should be dropped, registry has %d", registry.Len())
	}
}

func TestGenerateTidiesStyleAndSetting(t *testing.T) {
	completer := &testsupport.Completer{}
	svc, _, _ := newService(t, completer)

	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Transcript:     stormRows(),
		AnimationStyle: "hand drawn  watercolor",
		Setting:        " a  fishing village ",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Job.AnimationStyle != "hand drawn watercolor" || resp.Job.Setting != "a fishing village" {
		t.Fatalf("options not tidied: %#v", resp.Job)
	}
	if completer.Calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", completer.Calls())
	}
}

func TestGenerateRejectsEmptyTranscript(t *testing.T) {
	completer := &testsupport.Completer{}
	svc, store, _ := newService(t, completer)

	_, err := svc.Generate(context.Background(), GenerateRequest{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if completer.Calls() != 0 {
		t.Fatal("model should not be called")
	}
	stats, _ := store.Stats(context.Background())
	if len(stats) != 0 {
		t.Fatalf("no job should be stored, got %v", stats)
	}
}

func TestGenerateExhaustionMarksJobInvalid(t *testing.T) {
	completer := &testsupport.Completer{}
	invalid := func([]transcript.Row, storyboard.Options, []storyboard.Clip) []string {
		return []string{"clip 0 (0-2): prompt has no camera framing keyword"}
	}
	svc, _, _ := newService(t, completer, storyboard.WithValidator(invalid))

	passes := 1
	resp, err := svc.Generate(context.Background(), GenerateRequest{Transcript: stormRows(), MaxRepairPasses: &passes})
	var exhausted *storyboard.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if resp == nil || resp.Job.Status != string(jobs.StatusInvalid) || resp.Job.Attempts != 2 {
		t.Fatalf("unexpected job: %#v", resp)
	}
	if completer.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", completer.Calls())
	}
}

func TestStartStreamsEventsAndCompletes(t *testing.T) {
	completer := &testsupport.Completer{}
	svc, _, _ := newService(t, completer)

	job, err := svc.Start(context.Background(), GenerateRequest{Transcript: stormRows()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != string(jobs.StatusPending) {
		t.Fatalf("expected pending job, got %q", job.Status)
	}

	stream, ok := svc.Events(job.ID)
	if ok {
		sub := stream.Subscribe()
		defer sub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var last events.Event
		for {
			evt, err := sub.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			last = evt
		}
		if last.Type != events.TypeCompleted || last.JobID != job.ID {
			t.Fatalf("unexpected final event: %#v", last)
		}
	}
	svc.Wait()

	done, err := svc.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if done.Status != string(jobs.StatusCompleted) || len(done.Storyboard) == 0 {
		t.Fatalf("unexpected finished job: %#v", done)
	}
}

func TestStartCancelledContextFailsJob(t *testing.T) {
	completer := &testsupport.Completer{Block: true}
	svc, _, _ := newService(t, completer)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := svc.Start(ctx, GenerateRequest{Transcript: stormRows()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for completer.Calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	svc.Wait()

	got, err := svc.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != string(jobs.StatusFailed) || got.ErrorMessage == "" {
		t.Fatalf("expected failed job, got %#v", got)
	}
}

func TestJobNotFound(t *testing.T) {
	svc, _, _ := newService(t, &testsupport.Completer{})
	if _, err := svc.Job(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobsAndStats(t *testing.T) {
	completer := &testsupport.Completer{}
	svc, _, _ := newService(t, completer)
	for i := 0; i < 2; i++ {
		if _, err := svc.Generate(context.Background(), GenerateRequest{Transcript: stormRows()}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	list, err := svc.Jobs(context.Background(), 0, jobs.StatusCompleted)
	if err != nil || len(list) != 2 {
		t.Fatalf("Jobs = %d, %v", len(list), err)
	}
	if len(list[0].Storyboard) != 0 {
		t.Fatal("list entries should omit the storyboard")
	}
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["completed"] != 2 || stats["failed"] != 0 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRemove(t *testing.T) {
	svc, store, _ := newService(t, &testsupport.Completer{})
	pending := testsupport.NewJob(t, store, "ink", "a forest", "Fox")

	if err := svc.Remove(context.Background(), pending.ID); !errors.Is(err, ErrJobActive) {
		t.Fatalf("expected ErrJobActive, got %v", err)
	}

	resp, err := svc.Generate(context.Background(), GenerateRequest{Transcript: stormRows()})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := svc.Remove(context.Background(), resp.Job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Job(context.Background(), resp.Job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
	if err := svc.Remove(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
