// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"iqpower/internal/analyzer"
	applog "iqpower/internal/log"
	"iqpower/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Tag               | int32          | 4            | Measurement tag         |
| Blocks            | uint32         | 4            | Blocks averaged         |
| Power             | float64        | 8            | Linear in-band power    |
| Power dB          | float64        | 8            | 10*log10(Power)         |
+-----------------------------------------------------------------------------+
*/

// PacketSize is the length of every datagram.
const PacketSize = 4 + 8 + 4 + 4 + 8 + 8

// Publisher implements transport.Transport by packing each measurement into
// a datagram and sending it through a UDPSender.
type Publisher struct {
	sender *UDPSender

	mu          sync.Mutex
	sequenceNum uint32
	packet      *bytes.Buffer // Reused across sends.
}

// NewPublisher creates a Publisher. It takes ownership of sender.
func NewPublisher(sender *UDPSender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	applog.Infof("UDPPublisher: Initializing (Packet: %d bytes)", PacketSize)
	return &Publisher{
		sender: sender,
		packet: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Send packs and transmits data, which must be an analyzer.Measurement.
func (p *Publisher) Send(data any) error {
	var m analyzer.Measurement
	switch v := data.(type) {
	case analyzer.Measurement:
		m = v
	case *analyzer.Measurement:
		m = *v
	default:
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sequenceNum++
	if err := p.pack(m); err != nil {
		return fmt.Errorf("UDPPublisher: error packing packet %d: %w", p.sequenceNum, err)
	}
	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		return err
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packet.Len())
	return nil
}

func (p *Publisher) pack(m analyzer.Measurement) error {
	p.packet.Reset()

	fields := []any{
		p.sequenceNum,
		m.Timestamp.UnixNano(),
		int32(m.Tag),
		uint32(m.Blocks),
		m.Power,
		m.PowerDB,
	}
	for _, f := range fields {
		if err := binary.Write(p.packet, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	applog.Debugf("UDPPublisher: Close called")
	return p.sender.Close()
}

var _ transport.Transport = (*Publisher)(nil)
