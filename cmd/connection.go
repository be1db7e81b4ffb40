// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

const (
	// defaultBaudRate is the cell UART rate
	defaultBaudRate = 9600

	// passwordEnv names the environment variable holding the bridge password
	passwordEnv = "SCBS_PASSWORD"

	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// Connection carries the bus byte stream, from a serial port or a WebSocket bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed is returned by reads after the bridge has closed the link
var ErrConnectionClosed = errors.New("websocket connection closed")

// busTarget names the link a command talks to. URL takes precedence over
// Port when both are set.
type busTarget struct {
	Port          string
	Baud          int
	URL           string
	Username      string
	Password      string // prompted for on open when empty
	SkipTLSVerify bool
}

// flagTarget builds a target from the persistent connection flags
func flagTarget() busTarget {
	return busTarget{
		Port:          portName,
		Baud:          baudRate,
		URL:           wsURL,
		Username:      wsUsername,
		SkipTLSVerify: wsNoSSLVerify,
	}
}

func (t busTarget) String() string {
	if t.URL != "" {
		return fmt.Sprintf("WebSocket: %s", t.URL)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", t.Port, t.Baud)
}

func (t busTarget) validate() error {
	switch {
	case t.URL != "":
		return nil
	case t.Port == "":
		return noTargetError()
	case t.Baud <= 0:
		return fmt.Errorf("invalid baud rate %d", t.Baud)
	}
	return nil
}

// noTargetError lists the serial ports present to help pick one
func noTargetError() error {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return errors.New("either --port or --url must be specified")
	}
	return fmt.Errorf("either --port or --url must be specified (available ports: %s)", strings.Join(ports, ", "))
}

// SerialConnection wraps the serial port a cell UART is attached to
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens portName at 8N1 and discards any bytes the
// driver buffered before the open, which would otherwise arrive as a
// partial first line.
func OpenSerialConnection(portName string, baud int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug().Err(err).Str("port", portName).Msg("could not flush serial input")
	}

	return &SerialConnection{port: port}, nil
}

// WebSocketConnection carries bus text over a WebSocket serial bridge. A
// message may hold part of a line or several lines; line framing is left to
// the reader.
type WebSocketConnection struct {
	conn    *websocket.Conn
	pending []byte
	closed  bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	for len(w.pending) == 0 {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, ErrConnectionClosed
			}
			return 0, err
		}
		// bridges differ in which frame type they use for serial data
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			w.pending = data
		}
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Write sends p as one text message
func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenWebSocketConnection dials a bridge at wsURL, with HTTP Basic auth when
// username and password are both set
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, basicAuthHeader(username, password))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

func basicAuthHeader(username, password string) http.Header {
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}
	return headers
}

// GetPassword reads the bridge password from SCBS_PASSWORD or prompts for it
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err == nil {
		return string(passwordBytes), nil
	}

	// stdin is not a terminal
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(password), nil
}

// OpenConnection opens the link named by target and returns it with a
// description for banners
func OpenConnection(target busTarget) (Connection, string, error) {
	if err := target.validate(); err != nil {
		return nil, "", err
	}

	if target.URL != "" {
		password := target.Password
		if target.Username != "" && password == "" {
			var err error
			if password, err = GetPassword(); err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocketConnection(target.URL, target.Username, password, target.SkipTLSVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, target.String(), nil
	}

	conn, err := OpenSerialConnection(target.Port, target.Baud)
	if err != nil {
		return nil, "", err
	}
	return conn, target.String(), nil
}
