// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package es

import (
	"bufio"
	"io"

	"github.com/q191201771/tstoolbox/pkg/pes"
)

// FileSource 直接的ES文件，字节位置就是文件偏移
type FileSource struct {
	r    io.Reader
	s    io.Seeker
	br   *bufio.Reader
	posn int64
}

func NewFileSource(r io.Reader) *FileSource {
	fs := &FileSource{
		r:  r,
		br: bufio.NewReaderSize(r, 64*1024),
	}
	if s, ok := r.(io.Seeker); ok {
		fs.s = s
	}
	return fs
}

func (fs *FileSource) NextByte() (byte, Offset, error) {
	b, err := fs.br.ReadByte()
	if err != nil {
		return 0, Offset{}, err
	}
	posn := Offset{Infile: fs.posn}
	fs.posn++
	return b, posn, nil
}

func (fs *FileSource) Seek(posn Offset) error {
	if fs.s == nil {
		return ErrNotSeekable
	}
	if _, err := fs.s.Seek(posn.Infile, io.SeekStart); err != nil {
		return err
	}
	fs.br.Reset(fs.r)
	fs.posn = posn.Infile
	return nil
}

func (fs *FileSource) Seekable() bool {
	return fs.s != nil
}

// PesSource PES payload拼接出来的逻辑字节流
//
// 位置由（所在PES包的包首位置，payload内下标）二元组表示
//
type PesSource struct {
	src   pes.PacketSource
	cur   *pes.Packet
	index int
}

func NewPesSource(src pes.PacketSource) *PesSource {
	return &PesSource{
		src: src,
	}
}

// Source 借出底层的PES源（输出PSI时要看demuxer解出的PMT）
func (ps *PesSource) Source() pes.PacketSource {
	return ps.src
}

func (ps *PesSource) NextByte() (byte, Offset, error) {
	for ps.cur == nil || ps.index >= len(ps.cur.Payload) {
		pkt, err := ps.src.NextPes()
		if err != nil {
			return 0, Offset{}, err
		}
		ps.cur = pkt
		ps.index = 0
	}
	b := ps.cur.Payload[ps.index]
	posn := Offset{Infile: ps.cur.Posn, Inpacket: ps.index}
	ps.index++
	return b, posn, nil
}

// Seek 先让底层源回到那个PES包，再定位到payload内的下标
//
// 回读到的包首位置对不上说明输入在两次扫描之间变了，宁可报错也不输出脏数据
//
func (ps *PesSource) Seek(posn Offset) error {
	if !ps.src.Seekable() {
		return ErrNotSeekable
	}
	if err := ps.src.Seek(posn.Infile); err != nil {
		return err
	}
	// {0,0}是"回到流头"：TS/PS的第一个PES包不一定落在0上，
	// 从头重扫时不校验包首位置
	if posn.Infile == 0 && posn.Inpacket == 0 {
		ps.cur = nil
		ps.index = 0
		return nil
	}
	pkt, err := ps.src.NextPes()
	if err != nil {
		return err
	}
	if pkt.Posn != posn.Infile || posn.Inpacket > len(pkt.Payload) {
		return ErrNotSeekable
	}
	ps.cur = pkt
	ps.index = posn.Inpacket
	return nil
}

func (ps *PesSource) Seekable() bool {
	return ps.src.Seekable()
}
