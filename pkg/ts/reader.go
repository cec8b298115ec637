// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
)

// 失去同步后，最多向前扫描这么多字节寻找0x47
const maxResyncWindow = PacketSize * 16

// PacketReader 从字节流中按188字节切出TS包
//
// 输入可以是文件（io.ReadSeeker，支持Seek）或网络流（io.Reader，不支持Seek）
//
type PacketReader struct {
	r      io.Reader
	s      io.Seeker // nil表示不可seek
	posn   int64
	count  int64
	buf    [PacketSize]byte
}

func NewPacketReader(r io.Reader) *PacketReader {
	pr := &PacketReader{
		r: r,
	}
	if s, ok := r.(io.Seeker); ok {
		pr.s = s
	}
	return pr
}

// Posn 下一个包首字节的位置
func (pr *PacketReader) Posn() int64 {
	return pr.posn
}

// Count 已读出的包数
func (pr *PacketReader) Count() int64 {
	return pr.count
}

func (pr *PacketReader) Seekable() bool {
	return pr.s != nil
}

// Seek 文件型输入定位到任意188倍数的位置，网络型输入返回错误
func (pr *PacketReader) Seek(posn int64) error {
	if pr.s == nil {
		return ErrTs
	}
	if _, err := pr.s.Seek(posn, io.SeekStart); err != nil {
		return err
	}
	pr.posn = posn
	return nil
}

// Next 读出下一个TS包
//
// 返回io.EOF表示正常结束，ErrShortRead表示尾部有不完整的包，
// ErrLostSync表示扫描窗口内找不到0x47
//
func (pr *PacketReader) Next() (*Packet, error) {
	if err := pr.readFull(pr.buf[:]); err != nil {
		return nil, err
	}
	if pr.buf[0] != syncByte {
		if err := pr.resync(); err != nil {
			return nil, err
		}
	}

	pkt := &Packet{
		Header: ParsePacketHeader(pr.buf[:]),
		Posn:   pr.posn,
	}
	pr.posn += PacketSize
	pr.count++

	index := 4
	if pkt.Header.HasAdaptation() {
		var err error
		pkt.Adaptation, err = ParsePacketAdaptation(pr.buf[4:])
		if err != nil {
			return nil, err
		}
		index += 1 + int(pkt.Adaptation.Length)
	}
	if pkt.Header.HasPayload() {
		if index > PacketSize {
			nazalog.Warnf("adaptation field overflows packet. pid=%d, length=%d", pkt.Header.Pid, pkt.Adaptation.Length)
			return pkt, nil
		}
		payload := make([]byte, PacketSize-index)
		copy(payload, pr.buf[index:])
		pkt.Payload = payload
	}
	return pkt, nil
}

// 先在当前包内找0x47，再在有限窗口内找，都找不到就放弃
func (pr *PacketReader) resync() error {
	nazalog.Warnf("ts sync lost at posn=%d, resyncing", pr.posn)
	scanned := 0
	for scanned < maxResyncWindow {
		for i := 0; i < PacketSize; i++ {
			if pr.buf[i] == syncByte {
				n := copy(pr.buf[:], pr.buf[i:])
				pr.posn += int64(i)
				if err := pr.readFull(pr.buf[n:]); err != nil {
					return err
				}
				if pr.buf[0] == syncByte {
					return nil
				}
				break
			}
		}
		if pr.buf[0] == syncByte {
			return nil
		}
		scanned += PacketSize
		pr.posn += PacketSize
		if err := pr.readFull(pr.buf[:]); err != nil {
			return err
		}
	}
	return ErrLostSync
}

func (pr *PacketReader) readFull(b []byte) error {
	n, err := io.ReadFull(pr.r, b)
	if err == io.ErrUnexpectedEOF {
		if n == 0 {
			return io.EOF
		}
		return ErrShortRead
	}
	return err
}
