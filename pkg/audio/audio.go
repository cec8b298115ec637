// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package audio 音频帧边界探测
//
// 核心流程只当它们是"下一帧字节"的生产者，不解码内容
package audio

import (
	"errors"
	"io"
)

var ErrAudio = errors.New("tstoolbox.audio: fxxk")

// FrameReader 读出一个完整音频帧
type FrameReader interface {
	NextFrame() ([]byte, error)
}

// 带一个字节回退能力的小读取器，同步字搜索用
type byteScanner struct {
	r      io.Reader
	buf    [1]byte
	pushed []byte
}

func (s *byteScanner) readByte() (byte, error) {
	if n := len(s.pushed); n > 0 {
		b := s.pushed[n-1]
		s.pushed = s.pushed[:n-1]
		return b, nil
	}
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, io.EOF
		}
		return 0, err
	}
	return s.buf[0], nil
}

func (s *byteScanner) unread(b byte) {
	s.pushed = append(s.pushed, b)
}

func (s *byteScanner) readFull(b []byte) error {
	for i := range b {
		v, err := s.readByte()
		if err != nil {
			return err
		}
		b[i] = v
	}
	return nil
}
