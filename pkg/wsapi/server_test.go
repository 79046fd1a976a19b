// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package wsapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/safety"
	"emcmot-go/pkg/shmem"
)

type fakeController struct {
	mu       sync.Mutex
	status   shmem.Status
	errs     []string
	sent     []shmem.Command
	writeErr error
}

func (f *fakeController) ReadStatus(st *shmem.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*st = f.status
	return nil
}

func (f *fakeController) ReadConfig(c *shmem.Config) error {
	c.NumAxes = 2
	return nil
}

func (f *fakeController) ErrorGet() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return "", false, nil
	}
	msg := f.errs[0]
	f.errs = f.errs[1:]
	return msg, true, nil
}

func (f *fakeController) WriteCommand(cmd shmem.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	return f.writeErr
}

func (f *fakeController) InstanceID() string { return "test-instance" }

func (f *fakeController) lastSent() (shmem.Command, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return shmem.Command{}, 0
	}
	return f.sent[len(f.sent)-1], len(f.sent)
}

func rpc(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(buf))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp rpcResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCommandOverHTTP(t *testing.T) {
	ctl := &fakeController{}
	s := New(Config{Controller: ctl})

	resp := rpc(t, s, "motion.command", map[string]any{
		"command": "jog_incr",
		"args":    map[string]any{"axis": 1, "vel": 2.5, "offset": 0.5, "command_num": 99},
	})
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	cmd, n := ctl.lastSent()
	if n != 1 || cmd.Code != shmem.CmdJogIncr || cmd.Axis != 1 || cmd.Vel != 2.5 || cmd.Offset != 0.5 {
		t.Errorf("sent %+v", cmd)
	}
}

func TestCommandErrors(t *testing.T) {
	ctl := &fakeController{}
	s := New(Config{Controller: ctl})

	if resp := rpc(t, s, "motion.command", map[string]any{"command": "FLY"}); resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("unknown command: %+v", resp.Error)
	}
	if resp := rpc(t, s, "motion.nope", nil); resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Errorf("unknown method: %+v", resp.Error)
	}
	if resp := rpc(t, s, "motion.subscribe", nil); resp.Error == nil {
		t.Error("subscribe over plain HTTP accepted")
	}

	ctl.writeErr = errors.CommError(errors.ErrCommCommand, "ENABLE", "INVALID_COMMAND")
	resp := rpc(t, s, "motion.command", map[string]any{"command": "ENABLE"})
	if resp.Error == nil || resp.Error.Code != codeServer {
		t.Fatalf("rejected command: %+v", resp.Error)
	}
	data, _ := resp.Error.Data.(map[string]any)
	if data["code"] != string(errors.ErrCommCommand) {
		t.Errorf("error data = %v", resp.Error.Data)
	}
}

func TestStatusAndErrors(t *testing.T) {
	ctl := &fakeController{errs: []string{"axis 0 following error", "joint 1 on limit"}}
	ctl.status.Heartbeat = 12
	ctl.status.MotionFlag = shmem.MotionEnable
	ctl.status.AxisFlag[1] = shmem.AxisHomed
	s := New(Config{Controller: ctl})

	resp := rpc(t, s, "motion.status", nil)
	buf, _ := json.Marshal(resp.Result)
	var view StatusView
	if err := json.Unmarshal(buf, &view); err != nil {
		t.Fatal(err)
	}
	if view.Heartbeat != 12 || !view.Enabled || len(view.Joints) != 2 || !view.Joints[1].Homed {
		t.Errorf("view = %+v", view)
	}

	resp = rpc(t, s, "motion.errors", nil)
	msgs, _ := resp.Result.([]any)
	if len(msgs) != 2 || msgs[0] != "axis 0 following error" {
		t.Errorf("errors = %v", resp.Result)
	}
}

func TestEmergencyStopBlocksMotion(t *testing.T) {
	ctl := &fakeController{}
	mgr := safety.New(ctl, safety.Config{})
	mgr.AddStopper(stopperFunc(func() error { return nil }))
	s := New(Config{Controller: ctl, Safety: mgr})

	if resp := rpc(t, s, "motion.emergency_stop", map[string]any{"message": "test"}); resp.Error != nil {
		t.Fatalf("emergency stop: %+v", resp.Error)
	}
	if mgr.State() != safety.Faulted {
		t.Errorf("safety state = %s", mgr.State())
	}
	if resp := rpc(t, s, "motion.command", map[string]any{"command": "ENABLE"}); resp.Error == nil {
		t.Error("enable accepted after emergency stop")
	}
	if resp := rpc(t, s, "motion.command", map[string]any{"command": "DISABLE"}); resp.Error != nil {
		t.Errorf("disable refused: %+v", resp.Error)
	}
}

type stopperFunc func() error

func (f stopperFunc) Disable() error { return f() }

func TestWebSocketSubscribe(t *testing.T) {
	ctl := &fakeController{}
	ctl.status.Heartbeat = 3
	s := New(Config{Controller: ctl})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg["method"] != "notify_connected" {
		t.Fatalf("first message = %v", msg)
	}
	if s.ClientCount() != 1 {
		t.Errorf("client count = %d", s.ClientCount())
	}

	if err := conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "method": "motion.subscribe", "id": 7}); err != nil {
		t.Fatal(err)
	}
	if msg := read(); msg["id"] != float64(7) || msg["result"] == nil {
		t.Fatalf("subscribe response = %v", msg)
	}

	ctl.mu.Lock()
	ctl.errs = append(ctl.errs, "amp fault on axis 0")
	ctl.mu.Unlock()
	s.broadcast()

	if msg := read(); msg["method"] != "notify_motion_error" {
		t.Errorf("expected error notification, got %v", msg)
	}
	msg := read()
	if msg["method"] != "notify_status_update" {
		t.Fatalf("expected status update, got %v", msg)
	}
	params := msg["params"].([]any)
	if hb := params[0].(map[string]any)["heartbeat"]; hb != float64(3) {
		t.Errorf("heartbeat = %v", hb)
	}
}
