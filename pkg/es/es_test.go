// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package es

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tstoolbox/pkg/pes"
)

func TestUnitScanner(t *testing.T) {
	// 第一个unit前面的0不属于任何unit
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09, 0x10,
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e,
	}
	s := NewUnitScanner(NewFileSource(bytes.NewReader(data)))

	u1, err := s.NextUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0x09), u1.StartCode)
	assert.Equal(t, Offset{Infile: 1}, u1.StartPosn)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x09, 0x10}, u1.Data)

	u2, err := s.NextUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0x67), u2.StartCode)
	assert.Equal(t, Offset{Infile: 7}, u2.StartPosn)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e}, u2.Data)

	_, err = s.NextUnit()
	assert.Equal(t, io.EOF, err)
}

func TestUnitScannerShortUnit(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01}
	s := NewUnitScanner(NewFileSource(bytes.NewReader(data)))
	_, err := s.NextUnit()
	assert.Equal(t, ErrShortUnit, err)
}

func TestUnitScannerRoundTrip(t *testing.T) {
	// 各unit拼回去等于原数据去掉unit间的0
	data := []byte{
		0x00, 0x00, 0x01, 0xb3, 0x12, 0x34,
		0x00, 0x00, 0x01, 0x00, 0xab,
		0x00, 0x00, 0x01, 0x01, 0xcd, 0xef,
	}
	s := NewUnitScanner(NewFileSource(bytes.NewReader(data)))
	var joined []byte
	for {
		u, err := s.NextUnit()
		if err != nil {
			assert.Equal(t, io.EOF, err)
			break
		}
		joined = append(joined, u.Data...)
	}
	assert.Equal(t, data, joined)
	assert.Equal(t, int64(3), s.UnitCount())
}

// 假的PES源，测跨包的prefix和seek
type stubPesSource struct {
	packets []*pes.Packet
	index   int
}

func (s *stubPesSource) NextPes() (*pes.Packet, error) {
	if s.index >= len(s.packets) {
		return nil, io.EOF
	}
	p := s.packets[s.index]
	s.index++
	return p, nil
}

func (s *stubPesSource) Seek(posn int64) error {
	for i, p := range s.packets {
		if p.Posn == posn {
			s.index = i
			return nil
		}
	}
	return pes.ErrPes
}

func (s *stubPesSource) Seekable() bool {
	return true
}

func TestPesSourceStraddle(t *testing.T) {
	// start code prefix跨在两个PES包之间
	src := &stubPesSource{
		packets: []*pes.Packet{
			{Posn: 0, Payload: []byte{0x00, 0x00, 0x01, 0x09, 0x10, 0x00}},
			{Posn: 188, Payload: []byte{0x00, 0x01, 0x65, 0x88, 0x84}},
		},
	}
	s := NewUnitScanner(NewPesSource(src))

	u1, err := s.NextUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0x09), u1.StartCode)
	assert.Equal(t, Offset{Infile: 0, Inpacket: 0}, u1.StartPosn)
	// 跨包的prefix前那个0不属于unit 1
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x09, 0x10}, u1.Data)

	u2, err := s.NextUnit()
	assert.Equal(t, nil, err)
	assert.Equal(t, byte(0x65), u2.StartCode)
	// prefix的第一个0x00在第一个包的末尾
	assert.Equal(t, Offset{Infile: 0, Inpacket: 5}, u2.StartPosn)
}

func TestReadData(t *testing.T) {
	src := &stubPesSource{
		packets: []*pes.Packet{
			{Posn: 0, Payload: []byte{0x01, 0x02, 0x03}},
			{Posn: 188, Payload: []byte{0x04, 0x05, 0x06}},
		},
	}
	ps := NewPesSource(src)

	// 跨包读
	data, err := ReadData(ps, Offset{Infile: 0, Inpacket: 1}, 4)
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x02, 0x03, 0x04, 0x05}, data)

	// 再seek回去重读，结果一致
	data2, err := ReadData(ps, Offset{Infile: 0, Inpacket: 1}, 4)
	assert.Equal(t, nil, err)
	assert.Equal(t, data, data2)
}

func TestOffsetOrdering(t *testing.T) {
	a := Offset{Infile: 0, Inpacket: 5}
	b := Offset{Infile: 188, Inpacket: 0}
	c := Offset{Infile: 188, Inpacket: 1}
	assert.Equal(t, true, a.Before(b))
	assert.Equal(t, true, b.Before(c))
	assert.Equal(t, false, c.Before(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestDetectVideoKind(t *testing.T) {
	h264 := []byte{
		0x00, 0x00, 0x00, 0x01, 0x09, 0x10,
		0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e,
		0x00, 0x00, 0x01, 0x68, 0xc0,
	}
	s := NewUnitScanner(NewFileSource(bytes.NewReader(h264)))
	assert.Equal(t, KindH264, DetectVideoKind(s))

	h262 := []byte{
		0x00, 0x00, 0x01, 0xb3, 0x12, 0x34, 0x56, 0x78,
		0x00, 0x00, 0x01, 0x00, 0x00, 0x48, 0xff,
		0x00, 0x00, 0x01, 0x01, 0xaa,
	}
	s = NewUnitScanner(NewFileSource(bytes.NewReader(h262)))
	assert.Equal(t, KindH262, DetectVideoKind(s))
}
