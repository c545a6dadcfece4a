// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settingsui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/userprefs/lib/facade"
)

type fakeBackend struct {
	mu sync.Mutex

	color      string
	found      bool
	spaces     []facade.SpaceResponse
	current    facade.CurrentSpaceResponse
	loadErr    error
	saveErr    error
	publishErr error
	published  bool

	saved     []string
	publishes []string
	labels    []string
}

func (backend *fakeBackend) AccountColor(context.Context) (string, bool, error) {
	return backend.color, backend.found, backend.loadErr
}

func (backend *fakeBackend) SetAccountColor(_ context.Context, color string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.saved = append(backend.saved, color)
	return backend.saveErr
}

func (backend *fakeBackend) PublishColor(_ context.Context, color string) (string, bool, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.publishes = append(backend.publishes, color)
	if backend.publishErr != nil || !backend.published {
		return "", false, backend.publishErr
	}
	return "!space:local", true, nil
}

func (backend *fakeBackend) Spaces(context.Context) ([]facade.SpaceResponse, error) {
	return backend.spaces, nil
}

func (backend *fakeBackend) UseSpace(_ context.Context, label string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.labels = append(backend.labels, label)
	return nil
}

func (backend *fakeBackend) CurrentSpace(context.Context) (facade.CurrentSpaceResponse, error) {
	return backend.current, nil
}

// step feeds a message to the model and, when Update returns a
// command, runs it and feeds its result back once.
func step(t *testing.T, model Model, message tea.Msg) Model {
	t.Helper()
	updated, cmd := model.Update(message)
	model = updated.(Model)
	if cmd == nil {
		return model
	}
	updated, _ = model.Update(cmd())
	return updated.(Model)
}

func loaded(t *testing.T, backend *fakeBackend) Model {
	t.Helper()
	model := New(backend)
	updated, _ := model.Update(model.Init()())
	return updated.(Model)
}

func ctrlKey(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

func TestLoadSeedsInputAndSpace(t *testing.T) {
	backend := &fakeBackend{
		color: "#112233",
		found: true,
		spaces: []facade.SpaceResponse{
			{RoomID: "!a:local", Name: "Alpha"},
			{RoomID: "!b:local", Name: "Beta"},
		},
		current: facade.CurrentSpaceResponse{Label: "Beta", RoomID: "!b:local", Name: "Beta", Found: true},
	}
	model := loaded(t, backend)

	if model.Value() != "#112233" {
		t.Errorf("Value = %q, want #112233", model.Value())
	}
	if model.SpaceLabel() != "Beta" {
		t.Errorf("SpaceLabel = %q, want Beta", model.SpaceLabel())
	}
	view := ansi.Strip(model.View())
	if !strings.Contains(view, "Current space: Beta") {
		t.Errorf("view missing current space:\n%s", view)
	}
	if !strings.Contains(view, "Mates: User Color") {
		t.Errorf("view missing title:\n%s", view)
	}
}

func TestLoadWithoutColorUsesDefault(t *testing.T) {
	model := loaded(t, &fakeBackend{})
	if model.Value() != DefaultColor {
		t.Errorf("Value = %q, want %q", model.Value(), DefaultColor)
	}
	if model.SpaceLabel() != "home" {
		t.Errorf("SpaceLabel = %q, want home", model.SpaceLabel())
	}
}

func TestLoadFailureShowsStatus(t *testing.T) {
	model := loaded(t, &fakeBackend{loadErr: errors.New("socket gone")})
	if !strings.Contains(model.Status(), "socket gone") {
		t.Errorf("Status = %q", model.Status())
	}
}

func TestTypingUpdatesSwatchOnlyForHex(t *testing.T) {
	model := loaded(t, &fakeBackend{})
	for _, r := range "#abcdef" {
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		model = updated.(Model)
	}
	if model.swatch != "#abcdef" {
		t.Errorf("swatch = %q, want #abcdef", model.swatch)
	}

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'0'}})
	model = updated.(Model)
	if model.swatch != "#abcdef" {
		t.Errorf("swatch changed to %q on non-hex input", model.swatch)
	}
	if model.Value() != "#abcdef0" {
		t.Errorf("Value = %q, want typed text", model.Value())
	}
}

func TestSave(t *testing.T) {
	backend := &fakeBackend{color: "red", found: true}
	model := step(t, loaded(t, backend), ctrlKey(tea.KeyCtrlS))

	if model.Status() != "Saved" {
		t.Errorf("Status = %q, want Saved", model.Status())
	}
	if len(backend.saved) != 1 || backend.saved[0] != "red" {
		t.Errorf("saved = %v, want [red]", backend.saved)
	}
}

func TestSaveFailure(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("rejected")}
	model := step(t, loaded(t, backend), ctrlKey(tea.KeyCtrlS))
	if model.Status() != "Save failed" {
		t.Errorf("Status = %q, want Save failed", model.Status())
	}
}

func TestPublishOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		want    string
	}{
		{"published", &fakeBackend{published: true}, "Published to space"},
		{"no space", &fakeBackend{}, "Open a space to publish"},
		{"failed", &fakeBackend{publishErr: errors.New("forbidden")}, "Publish failed"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			model := step(t, loaded(t, test.backend), ctrlKey(tea.KeyCtrlP))
			if model.Status() != test.want {
				t.Errorf("Status = %q, want %q", model.Status(), test.want)
			}
			if len(test.backend.publishes) != 1 || test.backend.publishes[0] != DefaultColor {
				t.Errorf("publishes = %v", test.backend.publishes)
			}
		})
	}
}

func TestTabCyclesSpacesThroughHome(t *testing.T) {
	backend := &fakeBackend{spaces: []facade.SpaceResponse{
		{RoomID: "!a:local", Name: "Alpha"},
		{RoomID: "!b:local", Name: "Beta"},
	}}
	model := loaded(t, backend)

	var seen []string
	for range 3 {
		model = step(t, model, ctrlKey(tea.KeyTab))
		seen = append(seen, model.SpaceLabel())
	}
	model = step(t, model, ctrlKey(tea.KeyShiftTab))
	seen = append(seen, model.SpaceLabel())

	want := []string{"Alpha", "Beta", "home", "Beta"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Errorf("labels = %v, want %v", seen, want)
	}
	if strings.Join(backend.labels, ",") != strings.Join(want, ",") {
		t.Errorf("UseSpace calls = %v, want %v", backend.labels, want)
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	backend := &fakeBackend{}
	model := New(backend)
	updated, cmd := model.Update(ctrlKey(tea.KeyCtrlS))
	if cmd != nil {
		t.Error("save issued before load completed")
	}
	if updated.(Model).Status() != "Loading..." {
		t.Errorf("Status = %q", updated.(Model).Status())
	}
}

func TestQuit(t *testing.T) {
	_, cmd := loaded(t, &fakeBackend{}).Update(ctrlKey(tea.KeyEsc))
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc did not quit")
	}
}
