// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settingsui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/userprefs/lib/facade"
)

// DefaultColor is the swatch color before anything is loaded or typed,
// and the value saved when the input is empty.
const DefaultColor = "#7c3aed"

// homeLabel is the ambient label meaning "no space".
const homeLabel = "home"

// backendTimeout bounds each backend call made from the panel.
const backendTimeout = 30 * time.Second

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Backend is the daemon API the panel uses. facade.Remote implements
// it.
type Backend interface {
	AccountColor(ctx context.Context) (string, bool, error)
	SetAccountColor(ctx context.Context, color string) error
	PublishColor(ctx context.Context, color string) (string, bool, error)
	Spaces(ctx context.Context) ([]facade.SpaceResponse, error)
	UseSpace(ctx context.Context, label string) error
	CurrentSpace(ctx context.Context) (facade.CurrentSpaceResponse, error)
}

var _ Backend = (*facade.Remote)(nil)

// loadedMsg carries the initial state fetched from the backend.
type loadedMsg struct {
	color   string
	found   bool
	spaces  []facade.SpaceResponse
	current facade.CurrentSpaceResponse
	err     error
}

// saveResultMsg is sent when a Save completes.
type saveResultMsg struct {
	err error
}

// publishResultMsg is sent when a Publish completes.
type publishResultMsg struct {
	roomID    string
	published bool
	err       error
}

// spaceSelectedMsg is sent when UseSpace completes.
type spaceSelectedMsg struct {
	index int
	err   error
}

// Model is the bubbletea model of the settings panel.
type Model struct {
	backend Backend
	keys    KeyMap

	input  textinput.Model
	swatch string

	spaces []facade.SpaceResponse
	// spaceIndex is the selected entry of spaces, or -1 for home.
	spaceIndex int

	status string
	busy   bool
	width  int
}

// New creates the panel model.
func New(backend Backend) Model {
	input := textinput.New()
	input.Placeholder = "#RRGGBB or CSS color"
	input.CharLimit = 64
	input.Width = 24
	input.Focus()

	return Model{
		backend:    backend,
		keys:       DefaultKeyMap,
		input:      input,
		swatch:     DefaultColor,
		spaceIndex: -1,
		status:     "Loading...",
		busy:       true,
	}
}

// Init loads the account color and the space list.
func (model Model) Init() tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()

		var message loadedMsg
		message.color, message.found, message.err = backend.AccountColor(ctx)
		if message.err != nil {
			return message
		}
		if message.spaces, message.err = backend.Spaces(ctx); message.err != nil {
			return message
		}
		message.current, message.err = backend.CurrentSpace(ctx)
		return message
	}
}

// Value is the color Save and Publish send: the trimmed input, or the
// swatch color when the input is empty.
func (model Model) Value() string {
	if value := strings.TrimSpace(model.input.Value()); value != "" {
		return value
	}
	return model.swatch
}

// Status returns the status line.
func (model Model) Status() string { return model.status }

// SpaceLabel returns the selected space name, or "home".
func (model Model) SpaceLabel() string {
	if model.spaceIndex < 0 || model.spaceIndex >= len(model.spaces) {
		return homeLabel
	}
	return model.spaces[model.spaceIndex].Name
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit
		case model.busy:
			return model, nil
		case key.Matches(message, model.keys.Save):
			model.busy = true
			model.status = "Saving..."
			return model, model.save(model.Value())
		case key.Matches(message, model.keys.Publish):
			model.busy = true
			model.status = "Publishing..."
			return model, model.publish(model.Value())
		case key.Matches(message, model.keys.NextSpace):
			return model.selectSpace(model.spaceIndex + 1)
		case key.Matches(message, model.keys.PrevSpace):
			return model.selectSpace(model.spaceIndex - 1)
		}

		var cmd tea.Cmd
		model.input, cmd = model.input.Update(message)
		if value := strings.TrimSpace(model.input.Value()); hexColor.MatchString(value) {
			model.swatch = value
		}
		return model, cmd

	case loadedMsg:
		model.busy = false
		if message.err != nil {
			model.status = "Load failed: " + message.err.Error()
			return model, nil
		}
		model.status = ""
		if message.found {
			model.input.SetValue(message.color)
			if hexColor.MatchString(message.color) {
				model.swatch = message.color
			}
		}
		model.spaces = message.spaces
		model.spaceIndex = -1
		if message.current.Found {
			for index, space := range model.spaces {
				if space.RoomID == message.current.RoomID {
					model.spaceIndex = index
				}
			}
		}

	case saveResultMsg:
		model.busy = false
		if message.err != nil {
			model.status = "Save failed"
		} else {
			model.status = "Saved"
		}

	case publishResultMsg:
		model.busy = false
		switch {
		case message.err != nil:
			model.status = "Publish failed"
		case !message.published:
			model.status = "Open a space to publish"
		default:
			model.status = "Published to space"
		}

	case spaceSelectedMsg:
		model.busy = false
		if message.err != nil {
			model.status = "Space change failed"
			return model, nil
		}
		model.spaceIndex = message.index
		model.status = ""

	case tea.WindowSizeMsg:
		model.width = message.Width
	}
	return model, nil
}

// selectSpace asks the backend to switch to spaces[index], wrapping
// around through home (-1).
func (model Model) selectSpace(index int) (tea.Model, tea.Cmd) {
	count := len(model.spaces) + 1
	index = ((index+1)%count+count)%count - 1

	label := homeLabel
	if index >= 0 {
		label = model.spaces[index].Name
	}
	model.busy = true
	backend := model.backend
	return model, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		return spaceSelectedMsg{index: index, err: backend.UseSpace(ctx, label)}
	}
}

func (model Model) save(color string) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		return saveResultMsg{err: backend.SetAccountColor(ctx, color)}
	}
}

func (model Model) publish(color string) tea.Cmd {
	backend := model.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
		defer cancel()
		roomID, published, err := backend.PublishColor(ctx, color)
		return publishResultMsg{roomID: roomID, published: published, err: err}
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// View implements tea.Model.
func (model Model) View() string {
	swatch := lipgloss.NewStyle().
		Background(lipgloss.Color(model.swatch)).
		Render("      ")

	var lines []string
	lines = append(lines, titleStyle.Render("Mates: User Color"))
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center, swatch, " ", model.input.View()))
	lines = append(lines, fmt.Sprintf("Current space: %s", model.SpaceLabel()))
	lines = append(lines, faintStyle.Render(strings.Join([]string{
		helpEntry(model.keys.Save),
		helpEntry(model.keys.Publish),
		helpEntry(model.keys.NextSpace),
		helpEntry(model.keys.Quit),
	}, " · ")))
	if model.status != "" {
		lines = append(lines, statusStyle.Render(model.status))
	}

	style := panelStyle
	if model.width > 4 {
		style = style.MaxWidth(model.width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func helpEntry(binding key.Binding) string {
	help := binding.Help()
	return help.Key + " " + help.Desc
}

// Run shows the panel on the terminal until the user quits or ctx
// ends.
func Run(ctx context.Context, backend Backend, options ...tea.ProgramOption) error {
	options = append([]tea.ProgramOption{tea.WithContext(ctx)}, options...)
	_, err := tea.NewProgram(New(backend), options...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
