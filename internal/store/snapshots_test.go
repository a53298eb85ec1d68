package store

import (
	"testing"
	"time"

	"github.com/lazypower/companion/internal/persona"
)

var base = time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

func sampleSnapshot() persona.Snapshot {
	since := base.Add(-time.Hour)
	settings := persona.DefaultSettings()
	settings.SpecialDays = []string{"03-14"}
	return persona.Snapshot{
		UserID:       "u1",
		Mood:         persona.MoodRomantic,
		Bond:         42,
		LastActiveAt: base,
		Vanished:     true,
		Fight:        persona.Fight{Active: true, Since: &since},
		Settings:     settings,
		Planned:      []persona.PlannedEvent{{Description: "picnic on sunday", DueAt: base.Add(4 * time.Hour)}},
		Durable: []persona.Memory{
			{ID: "d1", UserID: "u1", Text: "I love you", Mood: persona.MoodRomantic, EmotionScore: 0.6, CreatedAt: base.Add(-2 * time.Hour)},
		},
		Ephemeral: []persona.Memory{
			{ID: "e1", UserID: "u1", Text: "lunch was ok", Mood: persona.MoodHappy, CreatedAt: base.Add(-time.Hour)},
			{ID: "e2", UserID: "u1", Text: "heading home", Mood: persona.MoodHappy, CreatedAt: base},
		},
	}
}

func TestSaveLoadSnapshots(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	want := sampleSnapshot()
	if err := db.SaveSnapshots([]persona.Snapshot{want}); err != nil {
		t.Fatalf("SaveSnapshots: %v", err)
	}

	got, err := db.LoadSnapshots()
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	s := got[0]

	if s.UserID != "u1" || s.Mood != persona.MoodRomantic || s.Bond != 42 || !s.Vanished {
		t.Errorf("user fields = %+v", s)
	}
	if !s.LastActiveAt.Equal(base) {
		t.Errorf("LastActiveAt = %v, want %v", s.LastActiveAt, base)
	}
	if !s.Fight.Active || s.Fight.Since == nil || !s.Fight.Since.Equal(*want.Fight.Since) {
		t.Errorf("Fight = %+v", s.Fight)
	}
	if len(s.Planned) != 1 || s.Planned[0].Description != "picnic on sunday" || !s.Planned[0].DueAt.Equal(want.Planned[0].DueAt) {
		t.Errorf("Planned = %+v", s.Planned)
	}
	if s.Settings.Personality != want.Settings.Personality || s.Settings.OptIn != want.Settings.OptIn {
		t.Errorf("Settings = %+v, want %+v", s.Settings, want.Settings)
	}
	if len(s.Settings.SpecialDays) != 1 || s.Settings.SpecialDays[0] != "03-14" {
		t.Errorf("SpecialDays = %v", s.Settings.SpecialDays)
	}
	if len(s.Durable) != 1 || s.Durable[0].ID != "d1" || s.Durable[0].EmotionScore != 0.6 {
		t.Errorf("Durable = %+v", s.Durable)
	}
	if len(s.Ephemeral) != 2 || s.Ephemeral[0].ID != "e1" || s.Ephemeral[1].ID != "e2" {
		t.Errorf("Ephemeral = %+v, want e1, e2 in order", s.Ephemeral)
	}
}

func TestSaveSnapshotsReplacesMemories(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	s := sampleSnapshot()
	if err := db.SaveSnapshots([]persona.Snapshot{s}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	s.Ephemeral = s.Ephemeral[:1]
	s.Bond = 43
	s.Fight = persona.Fight{}
	if err := db.SaveSnapshots([]persona.Snapshot{s}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	durable, ephemeral, err := db.MemoryCounts()
	if err != nil {
		t.Fatalf("MemoryCounts: %v", err)
	}
	if durable != 1 || ephemeral != 1 {
		t.Errorf("counts = %d/%d, want 1/1", durable, ephemeral)
	}

	got, err := db.LoadSnapshots()
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if got[0].Bond != 43 {
		t.Errorf("Bond = %d, want 43", got[0].Bond)
	}
	if got[0].Fight.Active || got[0].Fight.Since != nil {
		t.Errorf("Fight = %+v, want cleared", got[0].Fight)
	}
}

func TestSaveSnapshotsEmpty(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.SaveSnapshots(nil); err != nil {
		t.Fatalf("SaveSnapshots(nil): %v", err)
	}
	got, err := db.LoadSnapshots()
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestEngineRoundTripThroughStore(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	clock := func() time.Time { return base }
	src := persona.New(persona.DefaultConfig(), persona.WithRand(persona.NewRand(1)), persona.WithClock(clock))
	src.HandleMessage("u1", "I miss you so much", base)
	src.ForceRemember("u1", "my sister is called Ana")
	src.IncreaseBond("u2", 7)

	if err := db.SaveSnapshots(src.Export()); err != nil {
		t.Fatalf("SaveSnapshots: %v", err)
	}
	snaps, err := db.LoadSnapshots()
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}

	dst := persona.New(persona.DefaultConfig(), persona.WithClock(clock))
	dst.Restore(snaps)

	if got := len(dst.ListMemories("u1").Durable); got != 2 {
		t.Errorf("u1 durable = %d, want 2", got)
	}
	if got := dst.Status("u2").Bond; got != 7 {
		t.Errorf("u2 bond = %d, want 7", got)
	}
}
