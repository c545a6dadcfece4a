// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/userprefs/lib/ref"
	"github.com/bureau-foundation/userprefs/lib/secret"
)

var testUser = ref.MustParseUserID("@test:local")

// newTestSession creates a Client and DirectSession pointing at a test
// server.
func newTestSession(t *testing.T, handler http.Handler) (*Client, *DirectSession) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	token, err := secret.NewFromString("test-token")
	if err != nil {
		t.Fatalf("creating token buffer: %v", err)
	}
	session, err := client.SessionFromToken(testUser, token)
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return client, session
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}

func writeError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"errcode": code, "error": message})
}

func assertAuth(t *testing.T, request *http.Request, token string) {
	t.Helper()
	if got := request.Header.Get("Authorization"); got != "Bearer "+token {
		t.Errorf("Authorization = %q, want Bearer %s", got, token)
	}
}

func TestWhoAmI(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, map[string]string{"user_id": "@test:local", "device_id": "DEV1"})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if userID != testUser {
		t.Errorf("user ID = %s, want %s", userID, testUser)
	}
}

func TestResolveUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, map[string]string{"user_id": "@other:local"})
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("fills zero user", func(t *testing.T) {
		token, _ := secret.NewFromString("tok")
		session, _ := client.SessionFromToken(ref.UserID{}, token)
		defer session.Close()
		userID, err := session.ResolveUserID(context.Background())
		if err != nil {
			t.Fatalf("ResolveUserID: %v", err)
		}
		if userID.String() != "@other:local" || session.UserID() != userID {
			t.Errorf("user = %s, session user = %s", userID, session.UserID())
		}
	})

	t.Run("rejects mismatched user", func(t *testing.T) {
		token, _ := secret.NewFromString("tok")
		session, _ := client.SessionFromToken(testUser, token)
		defer session.Close()
		if _, err := session.ResolveUserID(context.Background()); err == nil {
			t.Fatal("expected mismatch error")
		}
	})
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/_matrix/client/v3/login" {
			t.Errorf("unexpected request: %s %s", request.Method, request.URL.Path)
		}
		var body LoginRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decoding login request: %v", err)
		}
		if body.Identifier == nil || body.Identifier.User != "alice" || body.Password != "hunter2" {
			t.Errorf("unexpected login body: %+v", body)
		}
		writeJSON(writer, map[string]string{"user_id": "@alice:local", "access_token": "fresh", "device_id": "D1"})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	password, _ := secret.NewFromString("hunter2")
	defer password.Close()

	session, err := client.Login(context.Background(), "alice", password, "userprefs")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	defer session.Close()
	if session.UserID().String() != "@alice:local" || session.DeviceID() != "D1" {
		t.Errorf("session = %s/%s", session.UserID(), session.DeviceID())
	}
	if session.AccessToken().String() != "fresh" {
		t.Errorf("token = %q", session.AccessToken().String())
	}
}

func TestStateEvents(t *testing.T) {
	roomID := ref.MustParseRoomID("!space:local")
	var stored []byte

	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		wantPath := "/_matrix/client/v3/rooms/!space:local/state/dev.mates.user_prefs/@alice:local"
		if request.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", request.URL.Path, wantPath)
		}
		switch request.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(request.Body)
			writeJSON(writer, map[string]string{"event_id": "$ev1"})
		case http.MethodGet:
			if stored == nil {
				writeError(writer, http.StatusNotFound, ErrCodeNotFound, "Event not found.")
				return
			}
			writer.Write(stored)
		}
	}))

	ctx := context.Background()
	_, err := session.GetStateEvent(ctx, roomID, "dev.mates.user_prefs", "@alice:local")
	if !IsMatrixError(err, ErrCodeNotFound) {
		t.Fatalf("expected M_NOT_FOUND before write, got %v", err)
	}

	eventID, err := session.SendStateEvent(ctx, roomID, "dev.mates.user_prefs", "@alice:local", map[string]any{"color": "#ff0000"})
	if err != nil {
		t.Fatalf("SendStateEvent: %v", err)
	}
	if eventID.String() != "$ev1" {
		t.Errorf("event ID = %s", eventID)
	}

	content, err := session.GetStateEvent(ctx, roomID, "dev.mates.user_prefs", "@alice:local")
	if err != nil {
		t.Fatalf("GetStateEvent: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(content, &decoded); err != nil || decoded["color"] != "#ff0000" {
		t.Errorf("content = %s (%v)", content, err)
	}
}

func TestAccountData(t *testing.T) {
	var stored []byte
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/user/@test:local/account_data/dev.mates.user_prefs" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		switch request.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(request.Body)
			writeJSON(writer, map[string]any{})
		case http.MethodGet:
			if stored == nil {
				writeError(writer, http.StatusNotFound, ErrCodeNotFound, "Account data not found")
				return
			}
			writer.Write(stored)
		}
	}))

	ctx := context.Background()
	if _, err := session.GetAccountData(ctx, "dev.mates.user_prefs"); !IsMatrixError(err, ErrCodeNotFound) {
		t.Fatalf("expected M_NOT_FOUND, got %v", err)
	}
	if err := session.SetAccountData(ctx, "dev.mates.user_prefs", map[string]any{"color": "blue"}); err != nil {
		t.Fatalf("SetAccountData: %v", err)
	}
	content, err := session.GetAccountData(ctx, "dev.mates.user_prefs")
	if err != nil {
		t.Fatalf("GetAccountData: %v", err)
	}
	if !strings.Contains(string(content), `"blue"`) {
		t.Errorf("content = %s", content)
	}
}

func TestAccountDataRequiresUserID(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "http://unused.invalid"})
	if err != nil {
		t.Fatal(err)
	}
	token, _ := secret.NewFromString("tok")
	session, _ := client.SessionFromToken(ref.UserID{}, token)
	defer session.Close()
	if err := session.SetAccountData(context.Background(), "x", map[string]any{}); err == nil {
		t.Fatal("expected error without a user ID")
	}
}

func TestSync(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		if query.Get("since") != "s1" || query.Get("timeout") != "0" {
			t.Errorf("unexpected query: %s", request.URL.RawQuery)
		}
		writer.Write([]byte(`{
			"next_batch": "s2",
			"account_data": {"events": [{"type": "dev.mates.user_prefs", "content": {"color": "red"}}]},
			"presence": {"events": [{"type": "m.presence", "sender": "@bob:local", "content": {"presence": "online"}}]},
			"rooms": {"join": {"!r:local": {
				"state": {"events": [{"type": "m.room.create", "state_key": "", "content": {"type": "m.space"}}]},
				"timeline": {"events": [{"type": "m.room.message", "event_id": "$m1", "sender": "@bob:local", "content": {"msgtype": "m.text", "body": "hi"}}], "prev_batch": "p1"}
			}}}
		}`))
	}))

	response, err := session.Sync(context.Background(), SyncOptions{Since: "s1", SetTimeout: true})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if response.NextBatch != "s2" {
		t.Errorf("next_batch = %s", response.NextBatch)
	}
	if len(response.AccountData.Events) != 1 || response.AccountData.Events[0].ContentString("color") != "red" {
		t.Errorf("account data = %+v", response.AccountData)
	}
	if len(response.Presence.Events) != 1 || response.Presence.Events[0].Content.Presence != "online" {
		t.Errorf("presence = %+v", response.Presence)
	}
	joined, ok := response.Rooms.Join["!r:local"]
	if !ok {
		t.Fatal("missing joined room")
	}
	if joined.State.Events[0].ContentString("type") != "m.space" {
		t.Errorf("create content = %s", joined.State.Events[0].Content)
	}
	message := joined.Timeline.Events[0]
	if message.EventID.String() != "$m1" || message.ContentString("body") != "hi" {
		t.Errorf("message = %+v", message)
	}
}

func TestGetRoomMembers(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(`{"chunk": [
			{"type": "m.room.member", "state_key": "@alice:local", "content": {"membership": "join", "displayname": "Alice", "avatar_url": "mxc://local/abc"}},
			{"type": "m.room.member", "state_key": "garbage", "content": {"membership": "join"}}
		]}`))
	}))

	members, err := session.GetRoomMembers(context.Background(), ref.MustParseRoomID("!r:local"))
	if err != nil {
		t.Fatalf("GetRoomMembers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("got %d members, want 1 (invalid state key skipped)", len(members))
	}
	if members[0].DisplayName != "Alice" || members[0].AvatarURL != "mxc://local/abc" {
		t.Errorf("member = %+v", members[0])
	}
}

func TestRoomMessages(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		if query.Get("dir") != "b" || query.Get("limit") != "5" || query.Get("from") != "p1" {
			t.Errorf("unexpected query: %s", request.URL.RawQuery)
		}
		writer.Write([]byte(`{"start": "p1", "end": "p0", "chunk": [{"type": "m.room.message", "sender": "@a:local", "content": {"body": "old"}}]}`))
	}))

	response, err := session.RoomMessages(context.Background(), ref.MustParseRoomID("!r:local"), RoomMessagesOptions{From: "p1", Limit: 5})
	if err != nil {
		t.Fatalf("RoomMessages: %v", err)
	}
	if response.End != "p0" || len(response.Chunk) != 1 {
		t.Errorf("response = %+v", response)
	}
}

func TestMatrixErrorClassification(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeError(writer, http.StatusForbidden, ErrCodeForbidden, "You don't have permission")
	}))

	_, err := session.SendStateEvent(context.Background(), ref.MustParseRoomID("!r:local"), "dev.mates.user_prefs", "@test:local", map[string]any{})
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("expected *MatrixError, got %v", err)
	}
	if matrixErr.StatusCode != http.StatusForbidden || matrixErr.Code != ErrCodeForbidden {
		t.Errorf("error = %+v", matrixErr)
	}
	if IsAuthError(err) {
		t.Error("M_FORBIDDEN classified as auth error")
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := session.WhoAmI(context.Background())
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("expected *MatrixError, got %v", err)
	}
	if matrixErr.StatusCode != http.StatusBadGateway || matrixErr.Code != ErrCodeUnknown {
		t.Errorf("error = %+v", matrixErr)
	}
}

func TestThumbnailURL(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "https://matrix.example.org/"})
	if err != nil {
		t.Fatal(err)
	}
	uri, err := ref.ParseContentURI("mxc://example.org/AbCdEf")
	if err != nil {
		t.Fatal(err)
	}

	got, err := client.ThumbnailURL(uri, 48, 48, "crop")
	if err != nil {
		t.Fatalf("ThumbnailURL: %v", err)
	}
	want := "https://matrix.example.org/_matrix/media/v3/thumbnail/example.org/AbCdEf?height=48&method=crop&width=48"
	if got != want {
		t.Errorf("ThumbnailURL = %s, want %s", got, want)
	}

	if _, err := client.ThumbnailURL(ref.ContentURI{}, 48, 48, "crop"); err == nil {
		t.Error("expected error for zero content URI")
	}
	if _, err := client.ThumbnailURL(uri, 0, 48, "crop"); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := client.ThumbnailURL(uri, 48, 48, "stretch"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestEventContentHelpers(t *testing.T) {
	event := Event{Content: json.RawMessage(`"not an object"`)}
	if _, ok := event.ContentObject(); ok {
		t.Error("string content reported as object")
	}
	if event.ContentString("body") != "" {
		t.Error("ContentString on non-object returned a value")
	}
	event.Content = json.RawMessage(`{"body": 5}`)
	if event.ContentString("body") != "" {
		t.Error("non-string value returned by ContentString")
	}
}
