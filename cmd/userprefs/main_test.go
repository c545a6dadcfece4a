// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/userprefs/lib/clienthandle"
	"github.com/bureau-foundation/userprefs/lib/facade"
	"github.com/bureau-foundation/userprefs/lib/hostclient/hostclienttest"
	"github.com/bureau-foundation/userprefs/lib/prefs"
	"github.com/bureau-foundation/userprefs/lib/recordlog"
	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/scope"
	"github.com/bureau-foundation/userprefs/lib/secret"
	"github.com/bureau-foundation/userprefs/lib/service"
	"github.com/bureau-foundation/userprefs/lib/testutil"
	"github.com/bureau-foundation/userprefs/lib/timeline"
)

var (
	me    = ref.MustParseUserID("@me:x")
	chat  = ref.MustParseRoomID("!chat:x")
	team  = ref.MustParseRoomID("!team:x")
	other = ref.MustParseRoomID("!other:x")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDaemon serves the facade over a fake host client and returns
// the socket path.
func startDaemon(t *testing.T) (string, *hostclienttest.Client) {
	t.Helper()
	client := hostclienttest.New(me)
	client.AddRoom(chat, "Chat", false)
	client.AddRoom(team, "Team", true)
	client.AddRoom(other, "Other", true)

	labels := scope.NewMutableLabel("")
	handle := clienthandle.Resolved(client)
	store, err := prefs.NewStore(prefs.StoreConfig{
		Handle: handle,
		Scopes: scope.AmbientResolver{Labels: labels},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	api, err := facade.Await(context.Background(), handle, store)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}

	socketPath := filepath.Join(testutil.SocketDir(t), "userprefs.sock")
	server := service.NewSocketServer(socketPath, discardLogger())
	facade.Register(server, api, labels)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return")
	})

	remote := facade.NewRemote(service.NewServiceClient(socketPath))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := remote.CurrentSpace(context.Background()); err == nil {
			return socketPath, client
		}
		if time.Now().After(deadline) {
			t.Fatal("socket did not come up")
		}
		time.Sleep(time.Millisecond)
	}
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).root().Execute(args)
	return stdout.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	var stderr bytes.Buffer
	if err := newApp(io.Discard, &stderr).root().Execute([]string{"--help"}); err != nil {
		t.Fatalf("--help: %v", err)
	}
	for _, name := range []string{"serve", "get", "set-color", "use-space", "settings", "tail", "login"} {
		if !strings.Contains(stderr.String(), name) {
			t.Errorf("help missing %q:\n%s", name, stderr.String())
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "frobnicate")
	if err == nil || !strings.Contains(err.Error(), `unknown command "frobnicate"`) {
		t.Errorf("err = %v", err)
	}
}

func TestWrongArgumentCount(t *testing.T) {
	_, err := execute(t, "get", "--socket", "/nonexistent.sock", "!chat:x")
	if err == nil || !strings.Contains(err.Error(), "wrong number of arguments") {
		t.Errorf("err = %v", err)
	}
}

func TestParseAssignments(t *testing.T) {
	partial, err := parseAssignments(`{"theme": "dark"}`, []string{"color=red", "size=3", "muted=true", "quoted=\"x\""})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	want := prefs.Blob{"theme": "dark", "color": "red", "size": float64(3), "muted": true, "quoted": "x"}
	if !reflect.DeepEqual(partial, want) {
		t.Errorf("partial = %v, want %v", partial, want)
	}

	for _, bad := range [][]string{{"novalue"}, {"=x"}} {
		if _, err := parseAssignments("", bad); err == nil {
			t.Errorf("parseAssignments(%v) succeeded", bad)
		}
	}
	if _, err := parseAssignments("[1]", nil); err == nil {
		t.Error("non-object --json accepted")
	}
}

func TestSetAndGetThroughDaemon(t *testing.T) {
	socketPath, _ := startDaemon(t)

	if _, err := execute(t, "set", "--socket", socketPath, "!chat:x", "@alice:x", "color=red", "size=3"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := execute(t, "set", "--socket", socketPath, "!chat:x", "@alice:x", "--json", `{"theme":"dark"}`); err != nil {
		t.Fatalf("set --json: %v", err)
	}

	output, err := execute(t, "get", "--socket", socketPath, "!chat:x", "@alice:x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(output), &blob); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, output)
	}
	want := map[string]any{"color": "red", "size": float64(3), "theme": "dark"}
	if !reflect.DeepEqual(blob, want) {
		t.Errorf("blob = %v, want %v", blob, want)
	}

	if _, err := execute(t, "set", "--socket", socketPath, "!chat:x", "@alice:x"); err == nil {
		t.Error("set with nothing to set succeeded")
	}
}

func TestSpacesAndUseSpace(t *testing.T) {
	socketPath, client := startDaemon(t)

	output, err := execute(t, "use-space", "--socket", socketPath, "Team")
	if err != nil {
		t.Fatalf("use-space: %v", err)
	}
	var current facade.CurrentSpaceResponse
	if err := json.Unmarshal([]byte(output), &current); err != nil {
		t.Fatalf("use-space output: %v\n%s", err, output)
	}
	if !current.Found || current.RoomID != team.String() || current.Label != "Team" {
		t.Errorf("current = %+v", current)
	}

	output, err = execute(t, "spaces", "--socket", socketPath)
	if err != nil {
		t.Fatalf("spaces: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("spaces output:\n%s", output)
	}
	if !strings.HasPrefix(lines[0], "  Other") || !strings.HasPrefix(lines[1], "* Team") {
		t.Errorf("spaces output:\n%s", output)
	}

	if _, err := execute(t, "set-color", "--socket", socketPath, "@alice:x", "blue"); err != nil {
		t.Fatalf("set-color: %v", err)
	}
	writes := client.Writes()
	if len(writes) != 1 || writes[0].RoomID != team || writes[0].StateKey != "@alice:x" {
		t.Errorf("writes = %+v", writes)
	}
}

func TestAccountSetAndPublish(t *testing.T) {
	socketPath, client := startDaemon(t)

	if _, err := execute(t, "account", "--socket", socketPath, "--publish", "--set", "#123456"); err == nil {
		t.Error("publish without a current space succeeded")
	}

	output, err := execute(t, "account", "--socket", socketPath)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	var account facade.AccountColorResponse
	if err := json.Unmarshal([]byte(output), &account); err != nil {
		t.Fatalf("account output: %v\n%s", err, output)
	}
	if !account.Found || account.Color != "#123456" {
		t.Errorf("account = %+v", account)
	}

	if _, err := execute(t, "use-space", "--socket", socketPath, "Team"); err != nil {
		t.Fatalf("use-space: %v", err)
	}
	if _, err := execute(t, "account", "--socket", socketPath, "--publish"); err != nil {
		t.Fatalf("account --publish: %v", err)
	}
	var published bool
	for _, write := range client.Writes() {
		if write.RoomID == team && write.StateKey == me.String() && strings.Contains(string(write.Content), "#123456") {
			published = true
		}
	}
	if !published {
		t.Errorf("color not published to the current space: %+v", client.Writes())
	}
}

func TestShareIsAccepted(t *testing.T) {
	socketPath, client := startDaemon(t)
	if _, err := execute(t, "share", "--socket", socketPath, "!chat:x", "@alice:x"); err != nil {
		t.Fatalf("share: %v", err)
	}
	if len(client.Writes()) != 0 {
		t.Errorf("share wrote %+v", client.Writes())
	}
}

func TestFormatRecord(t *testing.T) {
	record := timeline.Enrichment{
		RoomID:          "!chat:x",
		RoomName:        "Chat",
		Sender:          "@alice:x",
		DisplayName:     "Alice",
		Body:            "hello there",
		RoomPreferences: prefs.Blob{"color": "#ff0000"},
		ObservedAtMS:    time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC).UnixMilli(),
	}

	renderer := lipgloss.NewRenderer(io.Discard)
	renderer.SetColorProfile(termenv.TrueColor)
	colored := formatRecord(renderer, record, 0, time.UTC)
	if colored == ansi.Strip(colored) {
		t.Error("record rendered without color")
	}
	if got, want := ansi.Strip(colored), "09:30:15 [Chat] Alice: hello there"; got != want {
		t.Errorf("line = %q, want %q", got, want)
	}

	plain := lipgloss.NewRenderer(io.Discard)
	plain.SetColorProfile(termenv.Ascii)
	record.RoomName = ""
	record.DisplayName = ""
	if got, want := ansi.Strip(formatRecord(plain, record, 0, time.UTC)), "09:30:15 [!chat:x] @alice:x: hello there"; got != want {
		t.Errorf("fallback line = %q, want %q", got, want)
	}

	truncated := ansi.Strip(formatRecord(plain, record, 20, time.UTC))
	if ansi.StringWidth(truncated) > 20 || !strings.HasSuffix(truncated, "…") {
		t.Errorf("truncated line = %q", truncated)
	}
}

func TestNewRendererRejectsUnknownMode(t *testing.T) {
	if _, err := newRenderer(io.Discard, "sometimes"); err == nil {
		t.Error("unknown color mode accepted")
	}
}

func TestTailPrintsLastRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.cbor.lz4")
	writer, err := recordlog.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, body := range []string{"one", "two", "three"} {
		if err := writer.Append(timeline.Enrichment{RoomID: "!chat:x", Sender: "@alice:x", Body: body}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	output, err := execute(t, "tail", "--file", path, "-n", "2", "--color", "never")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], ": two") || !strings.HasSuffix(lines[1], ": three") {
		t.Errorf("tail output:\n%s", output)
	}
}

func TestWriteToken(t *testing.T) {
	token, err := secret.NewFromString("syt_abc")
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	defer token.Close()

	path := filepath.Join(t.TempDir(), "nested", "token")
	if err := writeToken(path, token, nil); err != nil {
		t.Fatalf("writeToken: %v", err)
	}
	assertFile(t, path, "syt_abc", 0o600)

	if err := writeToken(path, token, []string{"not-a-key"}); err == nil {
		t.Error("invalid recipient accepted")
	}
}

func TestProtectPassword(t *testing.T) {
	data := []byte("hunter2\r\n")
	password, err := protectPassword(data)
	if err != nil {
		t.Fatalf("protectPassword: %v", err)
	}
	defer password.Close()
	if password.String() != "hunter2" {
		t.Errorf("password = %q", password.String())
	}
	for _, b := range data {
		if b != 0 {
			t.Fatal("source not zeroed")
		}
	}
	if _, err := protectPassword([]byte("\n")); err == nil {
		t.Error("empty password accepted")
	}
}

func assertFile(t *testing.T, path, content string, mode fs.FileMode) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(data) != content {
		t.Errorf("%s = %q, want %q", path, data, content)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Mode().Perm() != mode {
		t.Errorf("%s mode = %v, want %v", path, info.Mode().Perm(), mode)
	}
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "userprefs ") {
		t.Errorf("output = %q", output)
	}
}
