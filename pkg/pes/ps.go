// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pes

import (
	"bufio"
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
)

// PsReader Program Stream输入
//
// <iso13818-1.pdf> <2.5> pack header + system header + PES packet，
// MPEG-1（iso11172-1 2.4.3）的pack header是12字节定长
//
type PsReader struct {
	r    io.Reader
	s    io.Seeker
	br   *bufio.Reader
	posn int64

	// 由pack header判断出的流版本，影响PES包头解析
	mpeg1 bool
}

func NewPsReader(r io.Reader) *PsReader {
	pr := &PsReader{
		r:  r,
		br: bufio.NewReaderSize(r, 64*1024),
	}
	if s, ok := r.(io.Seeker); ok {
		pr.s = s
	}
	return pr
}

func (pr *PsReader) Seekable() bool {
	return pr.s != nil
}

// Seek 定位到一个PES包（或pack header）的start code处
func (pr *PsReader) Seek(posn int64) error {
	if pr.s == nil {
		return ErrPes
	}
	if _, err := pr.s.Seek(posn, io.SeekStart); err != nil {
		return err
	}
	pr.br.Reset(pr.r)
	pr.posn = posn
	return nil
}

// NextPes 取下一个PES包，跳过pack header和system header
func (pr *PsReader) NextPes() (*Packet, error) {
	for {
		posn, sid, err := pr.nextStartCode()
		if err != nil {
			return nil, err
		}
		switch {
		case sid == 0xba:
			if err = pr.skipPackHeader(); err != nil {
				return nil, err
			}
		case sid == 0xbb:
			if err = pr.skipWithLength(); err != nil {
				return nil, err
			}
		case sid == 0xb9:
			// MPEG program end code
			return nil, io.EOF
		case sid >= 0xbc:
			lb, err := pr.read(2)
			if err != nil {
				return nil, err
			}
			length := int(lb[0])<<8 | int(lb[1])
			body, err := pr.read(length)
			if err != nil {
				return nil, err
			}
			full := make([]byte, 0, 6+length)
			full = append(full, 0x00, 0x00, 0x01, sid)
			full = append(full, lb...)
			full = append(full, body...)
			pkt, err := ParsePacket(full, posn, pr.mpeg1)
			if err != nil {
				nazalog.Warnf("parse ps pes packet failed. posn=%d, err=%+v", posn, err)
				continue
			}
			return pkt, nil
		default:
			nazalog.Warnf("unexpected ps start code. posn=%d, code=%#x", posn, sid)
		}
	}
}

// 对齐并消费下一个00 00 01和其后的code字节
//
// @return posn start code prefix第一个0x00的位置（多余的前导0不算）
//
func (pr *PsReader) nextStartCode() (posn int64, code uint8, err error) {
	zero := 0
	for {
		var b byte
		b, err = pr.br.ReadByte()
		if err != nil {
			return
		}
		pr.posn++
		if b == 0x01 && zero >= 2 {
			posn = pr.posn - 3
			code, err = pr.br.ReadByte()
			if err != nil {
				return
			}
			pr.posn++
			return
		}
		if b == 0x00 {
			zero++
		} else {
			zero = 0
		}
	}
}

func (pr *PsReader) skipPackHeader() error {
	b, err := pr.read(1)
	if err != nil {
		return err
	}
	if b[0]&0xc0 == 0x40 {
		// MPEG-2: 从这字节起共10字节，再加stuffing
		pr.mpeg1 = false
		rest, err := pr.read(9)
		if err != nil {
			return err
		}
		stuffing := int(rest[8] & 0x07)
		if stuffing > 0 {
			if _, err = pr.read(stuffing); err != nil {
				return err
			}
		}
	} else {
		// MPEG-1: 从这字节起共8字节
		pr.mpeg1 = true
		if _, err = pr.read(7); err != nil {
			return err
		}
	}
	return nil
}

func (pr *PsReader) skipWithLength() error {
	lb, err := pr.read(2)
	if err != nil {
		return err
	}
	length := int(lb[0])<<8 | int(lb[1])
	_, err = pr.read(length)
	return err
}

func (pr *PsReader) read(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(pr.br, b); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	pr.posn += int64(n)
	return b, nil
}
