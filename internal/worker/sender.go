package worker

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/pion/rtp"
)

// PayloadTypeL16 is the dynamic payload type announced for linear PCM.
const PayloadTypeL16 = 96

// sender frames PCM chunks as RTP packets (L16, network byte order) and
// writes them to a stream with the RFC 4571 two-byte length prefix.
type sender struct {
	w     io.Writer
	seq   rtp.Sequencer
	ssrc  uint32
	ts    uint32
	chans int
	sent  uint64 // payload bytes since the last stats tick
	buf   []byte
}

func newSender(w io.Writer, channels int) *sender {
	return &sender{
		w:     w,
		seq:   rtp.NewRandomSequencer(),
		ssrc:  rand.Uint32(),
		ts:    rand.Uint32(),
		chans: max(channels, 1),
	}
}

func (s *sender) send(pcm []int16) error {
	payload := make([]byte, 2*len(pcm))
	for i, v := range pcm {
		binary.BigEndian.PutUint16(payload[2*i:], uint16(v))
	}
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    PayloadTypeL16,
			SequenceNumber: s.seq.NextSequenceNumber(),
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal rtp: %w", err)
	}
	if len(raw) > 0xffff {
		return fmt.Errorf("rtp packet too large: %d bytes", len(raw))
	}

	s.buf = s.buf[:0]
	s.buf = binary.BigEndian.AppendUint16(s.buf, uint16(len(raw)))
	s.buf = append(s.buf, raw...)
	if _, err := s.w.Write(s.buf); err != nil {
		return err
	}
	s.ts += uint32(len(pcm) / s.chans)
	s.sent += uint64(len(payload))
	return nil
}

// takeSent returns and clears the byte counter.
func (s *sender) takeSent() uint64 {
	n := s.sent
	s.sent = 0
	return n
}
