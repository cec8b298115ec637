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

// AdtsReader ADTS封装的AAC
//
// <ISO-14496-3.pdf> <1.A.2.2> syncword是12个1，
// aac_frame_length在第30..42位
//
type AdtsReader struct {
	s byteScanner

	// sync匹配到的第二个字节（带layer/protection位）
	secondByte byte
}

func NewAdtsReader(r io.Reader) *AdtsReader {
	return &AdtsReader{
		s: byteScanner{r: r},
	}
}

func (ar *AdtsReader) NextFrame() ([]byte, error) {
	if err := ar.sync(); err != nil {
		return nil, err
	}
	header := make([]byte, 7)
	header[0] = 0xff
	header[1] = ar.secondByte
	if err := ar.s.readFull(header[2:]); err != nil {
		return nil, err
	}

	length := int(header[3]&0x03)<<11 | int(header[4])<<3 | int(header[5]>>5)
	if length < 7 {
		nazalog.Warnf("adts frame length too small. length=%d", length)
		return nil, ErrAudio
	}
	frame := make([]byte, length)
	copy(frame, header)
	if err := ar.s.readFull(frame[7:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func (ar *AdtsReader) sync() error {
	for {
		b, err := ar.s.readByte()
		if err != nil {
			return err
		}
		if b != 0xff {
			continue
		}
		b2, err := ar.s.readByte()
		if err != nil {
			return err
		}
		if b2&0xf0 == 0xf0 {
			ar.secondByte = b2
			return nil
		}
		ar.s.unread(b2)
	}
}
