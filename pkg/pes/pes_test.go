// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pes

import (
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

// PTS/DTS的5字节编码，fb是首字节高4位（只有PTS时为2）
func encodePts(fb uint8, pts uint64) []byte {
	b := make([]byte, 5)
	b[0] = (fb << 4) | (uint8(pts>>30)&0x07)<<1 | 1
	v := ((pts >> 15) & 0x7fff) << 1 | 1
	b[1] = uint8(v >> 8)
	b[2] = uint8(v)
	v = (pts&0x7fff)<<1 | 1
	b[3] = uint8(v >> 8)
	b[4] = uint8(v)
	return b
}

func buildPes(sid uint8, pts uint64, payload []byte) []byte {
	b := []byte{0x00, 0x00, 0x01, sid}
	length := 3 + 5 + len(payload)
	b = append(b, uint8(length>>8), uint8(length))
	b = append(b, 0x80, 0x80, 0x05)
	b = append(b, encodePts(2, pts)...)
	return append(b, payload...)
}

func TestParsePacket(t *testing.T) {
	payload := []byte{0x11, 0x22, 0x33, 0x44}
	b := buildPes(0xe0, 900000, payload)
	pkt, err := ParsePacket(b, 376, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(0xe0), pkt.Sid)
	assert.Equal(t, true, pkt.HasPts())
	assert.Equal(t, false, pkt.HasDts())
	assert.Equal(t, uint64(900000), pkt.Pts)
	assert.Equal(t, uint64(900000), pkt.Dts)
	assert.Equal(t, payload, pkt.Payload)
	assert.Equal(t, int64(376), pkt.Posn)
}

func TestParsePacketBadMarker(t *testing.T) {
	b := buildPes(0xe0, 900000, []byte{0x01})
	b[9] &= 0xfe // 抹掉第一个marker bit
	_, err := ParsePacket(b, 0, false)
	assert.IsNotNil(t, err)
}

func TestParsePacketMpeg1(t *testing.T) {
	// 0xFF填充 + PTS only
	b := []byte{0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0xff, 0xff}
	b = append(b, encodePts(2, 1234)...)
	b = append(b, 0xaa, 0xbb)
	pkt, err := ParsePacket(b, 0, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(1234), pkt.Pts)
	assert.Equal(t, []byte{0xaa, 0xbb}, pkt.Payload)
}

func TestAssemblerZeroLength(t *testing.T) {
	a := NewAssembler(0x68)

	// 声明长度0的视频PES只能靠下一个PUSI闭合
	head := []byte{0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0x80, 0x00, 0x00}
	completed := a.Feed(true, append(head, 0x01, 0x02), 0)
	assert.Equal(t, 0, len(completed))
	completed = a.Feed(false, []byte{0x03, 0x04}, 188)
	assert.Equal(t, 0, len(completed))

	completed = a.Feed(true, append(head, 0xff), 376)
	assert.Equal(t, 1, len(completed))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, completed[0].Payload)
	assert.Equal(t, int64(0), completed[0].Posn)

	// EOF时把开着的最后一个包交出来
	last := a.Flush()
	assert.IsNotNil(t, last)
	assert.Equal(t, []byte{0xff}, last.Payload)
	assert.Equal(t, int64(376), last.Posn)
}

func TestAssemblerDeclaredLength(t *testing.T) {
	a := NewAssembler(0x67)
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	b := buildPes(0xc0, 0, payload)

	// 多喂两个字节，应当被截掉
	completed := a.Feed(true, append(b, 0x99, 0x99), 0)
	assert.Equal(t, 1, len(completed))
	assert.Equal(t, payload, completed[0].Payload)
}
