// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"iqpower/internal/analyzer"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receive(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}
	return buf[:n]
}

func TestPublisherPacketLayout(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	pub, err := NewPublisher(sender)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	ts := time.Unix(1700000000, 123456789)
	m := analyzer.Measurement{Tag: -5, Power: 1024.25, PowerDB: 30.1, Blocks: 4, Timestamp: ts}

	for seq := uint32(1); seq <= 2; seq++ {
		if err := pub.Send(m); err != nil {
			t.Fatalf("Send() error: %v", err)
		}
		pkt := receive(t, conn)
		if len(pkt) != PacketSize {
			t.Fatalf("packet size = %d, want %d", len(pkt), PacketSize)
		}

		be := binary.BigEndian
		if got := be.Uint32(pkt[0:4]); got != seq {
			t.Errorf("sequence = %d, want %d", got, seq)
		}
		if got := int64(be.Uint64(pkt[4:12])); got != ts.UnixNano() {
			t.Errorf("timestamp = %d, want %d", got, ts.UnixNano())
		}
		if got := int32(be.Uint32(pkt[12:16])); got != -5 {
			t.Errorf("tag = %d, want -5", got)
		}
		if got := be.Uint32(pkt[16:20]); got != 4 {
			t.Errorf("blocks = %d, want 4", got)
		}
		if got := math.Float64frombits(be.Uint64(pkt[20:28])); got != 1024.25 {
			t.Errorf("power = %v, want 1024.25", got)
		}
		if got := math.Float64frombits(be.Uint64(pkt[28:36])); got != 30.1 {
			t.Errorf("power dB = %v, want 30.1", got)
		}
	}
}

func TestPublisherRejectsOtherPayloads(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	pub, _ := NewPublisher(sender)
	defer pub.Close()

	if err := pub.Send("not a measurement"); err == nil {
		t.Error("expected error for unsupported payload")
	}
	// Pointers are accepted too.
	if err := pub.Send(&analyzer.Measurement{Tag: 1}); err != nil {
		t.Errorf("Send(*Measurement) error: %v", err)
	}
}

func TestNewPublisherNilSender(t *testing.T) {
	if _, err := NewPublisher(nil); err == nil {
		t.Error("expected error for nil sender")
	}
}

func TestSenderClosed(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := sender.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("expected ErrSenderClosed, got %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("not an address"); err == nil {
		t.Error("expected error for invalid address")
	}
}
