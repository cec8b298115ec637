// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package audio

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

func TestAdtsReader(t *testing.T) {
	// 两个frame_length=9的ADTS帧，中间混点垃圾
	frame := []byte{0xff, 0xf1, 0x50, 0x40, 0x01, 0x3f, 0xfc, 0xde, 0xad}
	var input []byte
	input = append(input, 0x00, 0x11) // 垃圾
	input = append(input, frame...)
	input = append(input, frame...)

	r := NewAdtsReader(bytes.NewReader(input))

	f1, err := r.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, frame, f1)

	f2, err := r.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, frame, f2)

	_, err = r.NextFrame()
	assert.Equal(t, io.EOF, err)
}

func TestAc3Reader(t *testing.T) {
	// fscod=0(48kHz) frmsizecod=0 -> 64 words = 128字节
	frame := make([]byte, 128)
	frame[0] = 0x0b
	frame[1] = 0x77
	frame[2] = 0x12
	frame[3] = 0x34
	frame[4] = 0x00 // fscod<<6 | frmsizecod

	r := NewAc3Reader(bytes.NewReader(frame))
	f, err := r.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, frame, f)
}

func TestMpaReader(t *testing.T) {
	// MPEG-1 layer II，bitrate_index=2(48kbps)，44.1kHz：144*48000/44100=156
	header := []byte{0xff, 0xfc, 0x20, 0x00}
	frame := make([]byte, 156)
	copy(frame, header)

	r := NewMpaReader(bytes.NewReader(frame))
	f, err := r.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, frame, f)
}
