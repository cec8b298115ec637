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

// <iso11172-3.pdf> <2.4.2.3> bitrate_index表，kbps，0是free format，15非法
var mpaBitrate = map[uint8][3][14]int{
	// MPEG-1: layer I, II, III
	3: {
		{32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		{32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		{32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	// MPEG-2: layer I, II, III
	2: {
		{32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		{8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		{8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

var mpaSampleRate = map[uint8][3]int{
	3: {44100, 48000, 32000}, // MPEG-1
	2: {22050, 24000, 16000}, // MPEG-2
}

// MpaReader MPEG-1/2 layer I/II/III音频帧边界探测
type MpaReader struct {
	s byteScanner
}

func NewMpaReader(r io.Reader) *MpaReader {
	return &MpaReader{
		s: byteScanner{r: r},
	}
}

func (mr *MpaReader) NextFrame() ([]byte, error) {
	header := make([]byte, 4)
	if err := mr.sync(header); err != nil {
		return nil, err
	}

	version := (header[1] >> 3) & 0x03  // 3=MPEG-1 2=MPEG-2
	layerBits := (header[1] >> 1) & 0x03 // 3=I 2=II 1=III
	bitrateIndex := header[2] >> 4
	srIndex := (header[2] >> 2) & 0x03
	padding := int((header[2] >> 1) & 0x01)

	brTable, ok := mpaBitrate[version]
	if !ok || layerBits == 0 || bitrateIndex == 0 || bitrateIndex == 15 || srIndex == 3 {
		nazalog.Warnf("bad mpeg audio header. version=%d, layer=%d, bitrate_index=%d", version, layerBits, bitrateIndex)
		return nil, ErrAudio
	}
	layer := 3 - int(layerBits) // 0=I 1=II 2=III
	bitrate := brTable[layer][bitrateIndex-1] * 1000
	sampleRate := mpaSampleRate[version][srIndex]

	var length int
	if layer == 0 {
		length = (12*bitrate/sampleRate + padding) * 4
	} else {
		length = 144*bitrate/sampleRate + padding
	}
	if length < 4 {
		return nil, ErrAudio
	}

	frame := make([]byte, length)
	copy(frame, header)
	if err := mr.s.readFull(frame[4:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// 11位同步字：0xFF + 高3位全1
func (mr *MpaReader) sync(header []byte) error {
	for {
		b, err := mr.s.readByte()
		if err != nil {
			return err
		}
		if b != 0xff {
			continue
		}
		b2, err := mr.s.readByte()
		if err != nil {
			return err
		}
		if b2&0xe0 == 0xe0 {
			header[0] = b
			header[1] = b2
			return mr.s.readFull(header[2:])
		}
		mr.s.unread(b2)
	}
}
