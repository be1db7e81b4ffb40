// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
)

// newCellBridge serves a WebSocket that runs every received line through a
// simulated cell and sends its output back, as a serial bridge to one cell would.
func newCellBridge(t *testing.T, wantAuth string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user+":"+pass != wantAuth {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		conn := &WebSocketConnection{conn: ws}
		node := cell.NewNode(cell.NewSimulatedRegisters(cell.DefaultConfig()), cell.NewWriterSink(conn, logger))
		src := cell.NewReaderSource(conn)
		for line := range src.Lines() {
			node.HandleLine(line)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURLFor(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnectionRoundTrip(t *testing.T) {
	srv := newCellBridge(t, "")

	conn, err := OpenWebSocketConnection(wsURLFor(srv), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	src := cell.NewReaderSource(conn)
	if err := transmit(conn, "$BSDIS,0*53"); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	var got string
	if err := collectLines(src, 2*time.Second, func(line string) bool {
		got = line
		return true
	}); err != nil {
		t.Fatalf("collectLines: %v", err)
	}
	if got != "$BSDIS,1*52" {
		t.Errorf("expected forwarded discover, got %q", got)
	}
}

func TestWebSocketConnectionBasicAuth(t *testing.T) {
	srv := newCellBridge(t, "admin:secret")

	if _, err := OpenWebSocketConnection(wsURLFor(srv), "admin", "wrong", false); err == nil {
		t.Fatal("expected authentication failure")
	} else if !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("unexpected error: %v", err)
	}

	conn, err := OpenWebSocketConnection(wsURLFor(srv), "admin", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	conn.Close()
}

func TestOpenWebSocketConnectionRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://localhost/ws", "", "", false)
	if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestBusTarget(t *testing.T) {
	tests := []struct {
		name     string
		target   busTarget
		wantInfo string
		wantErr  string
	}{
		{"serial", busTarget{Port: "/dev/ttyUSB0", Baud: 9600}, "Serial: /dev/ttyUSB0 @ 9600 baud", ""},
		{"websocket", busTarget{URL: "ws://bridge/ws"}, "WebSocket: ws://bridge/ws", ""},
		{"url wins", busTarget{Port: "/dev/ttyUSB0", Baud: 9600, URL: "ws://bridge/ws"}, "WebSocket: ws://bridge/ws", ""},
		{"no target", busTarget{Baud: 9600}, "", "either --port or --url"},
		{"bad baud", busTarget{Port: "/dev/ttyUSB0"}, "", "invalid baud rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("validate() = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate() = %v", err)
			}
			if got := tt.target.String(); got != tt.wantInfo {
				t.Errorf("String() = %q, want %q", got, tt.wantInfo)
			}
		})
	}
}

func TestOpenConnectionRequiresTarget(t *testing.T) {
	if _, _, err := OpenConnection(busTarget{Baud: defaultBaudRate}); err == nil {
		t.Fatal("expected error without --port or --url")
	}
}

func TestOpenConnectionWebSocket(t *testing.T) {
	srv := newCellBridge(t, "")

	conn, info, err := OpenConnection(busTarget{URL: wsURLFor(srv)})
	if err != nil {
		t.Fatalf("OpenConnection: %v", err)
	}
	defer conn.Close()
	if !strings.HasPrefix(info, "WebSocket: ws://") {
		t.Errorf("info = %q", info)
	}
}

func TestFlagTarget(t *testing.T) {
	savedPort, savedBaud, savedURL := portName, baudRate, wsURL
	defer func() { portName, baudRate, wsURL = savedPort, savedBaud, savedURL }()
	portName, baudRate, wsURL = "/dev/ttyACM0", 115200, ""

	got := flagTarget()
	if got.Port != "/dev/ttyACM0" || got.Baud != 115200 || got.URL != "" {
		t.Errorf("flagTarget() = %+v", got)
	}
}

func TestWebSocketConnectionClosedByBridge(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte("$BSDIS,1*52\r\n$BSDIS,2"))
		_ = ws.WriteMessage(websocket.TextMessage, []byte("*51\r\n"))
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	conn, err := OpenWebSocketConnection(wsURLFor(srv), "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	src := cell.NewReaderSource(conn)
	var lines []string
	for line := range src.Lines() {
		lines = append(lines, line)
	}
	if len(lines) != 2 || lines[0] != "$BSDIS,1*52" || lines[1] != "$BSDIS,2*51" {
		t.Errorf("lines = %q", lines)
	}
	if err := src.Err(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Err() = %v, want ErrConnectionClosed", err)
	}
}

func TestGetPasswordFromEnvironment(t *testing.T) {
	t.Setenv(passwordEnv, "hunter2")
	pw, err := GetPassword()
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("GetPassword = %q", pw)
	}
}
