package gfs

import (
	"encoding/json"
	"fmt"
	"net"
)

// WriteMessage JSON-encodes v and writes it to conn in a single Write call.
// §6: one logical message per accepted connection, request and response
// each a single JSON object.
func WriteMessage(conn net.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gfs: encode message: %w", err)
	}
	_, err = conn.Write(b)
	return err
}

// ReadMessage reads a single fixed-size framing window (RecvWindow bytes,
// §6) from conn and decodes it as JSON into v. A message larger than the
// window is truncated — this is the open limitation acknowledged in §9,
// not something this codec silently works around.
func ReadMessage(conn net.Conn, v interface{}) error {
	buf := make([]byte, RecvWindow)
	n, err := conn.Read(buf)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("gfs: empty message")
	}
	return json.Unmarshal(buf[:n], v)
}
