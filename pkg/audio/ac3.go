// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package audio

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
)

// <ATSC A/52> <Table 5.18> frame size code表，单位16-bit word
// 行按frmsizecod/2（即bitrate档位），列按fscod；44.1kHz奇数frmsizecod加1个word
var ac3FrameSizeWords = [19][3]uint16{
	// 48kHz  44.1kHz  32kHz
	{64, 69, 96},
	{80, 87, 120},
	{96, 104, 144},
	{112, 121, 168},
	{128, 139, 192},
	{160, 174, 240},
	{192, 208, 288},
	{224, 243, 336},
	{256, 278, 384},
	{320, 348, 480},
	{384, 417, 576},
	{448, 487, 672},
	{512, 557, 768},
	{640, 696, 960},
	{768, 835, 1152},
	{896, 975, 1344},
	{1024, 1114, 1536},
	{1152, 1253, 1728},
	{1280, 1393, 1920},
}

// Ac3Reader AC-3 syncframe边界探测
//
// syncword 0x0B 0x77，第5字节是fscod(2b)+frmsizecod(6b)
//
type Ac3Reader struct {
	s byteScanner
}

func NewAc3Reader(r io.Reader) *Ac3Reader {
	return &Ac3Reader{
		s: byteScanner{r: r},
	}
}

func (ar *Ac3Reader) NextFrame() ([]byte, error) {
	if err := ar.sync(); err != nil {
		return nil, err
	}
	rest := make([]byte, 3)
	if err := ar.s.readFull(rest); err != nil {
		return nil, err
	}
	fscod := rest[2] >> 6
	frmsizecod := rest[2] & 0x3f
	if fscod == 3 || frmsizecod >= 38 {
		nazalog.Warnf("bad ac3 sync info. fscod=%d, frmsizecod=%d", fscod, frmsizecod)
		return nil, ErrAudio
	}
	words := ac3FrameSizeWords[frmsizecod>>1][fscod]
	if fscod == 1 && frmsizecod&1 == 1 {
		words++
	}
	length := int(words) * 2

	frame := make([]byte, length)
	frame[0] = 0x0b
	frame[1] = 0x77
	copy(frame[2:], rest)
	if err := ar.s.readFull(frame[5:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func (ar *Ac3Reader) sync() error {
	for {
		b, err := ar.s.readByte()
		if err != nil {
			return err
		}
		if b != 0x0b {
			continue
		}
		b2, err := ar.s.readByte()
		if err != nil {
			return err
		}
		if b2 == 0x77 {
			return nil
		}
		ar.s.unread(b2)
	}
}
