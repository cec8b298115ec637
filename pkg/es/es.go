// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package es

import "errors"

var (
	ErrEs = errors.New("tstoolbox.es: fxxk")

	// 文件尾只剩一个start code prefix，没有完整unit
	ErrShortUnit = errors.New("tstoolbox.es: short unit at eof")

	// 倒放要求输入可seek
	ErrNotSeekable = errors.New("tstoolbox.es: source not seekable")
)

// Offset ES视图里一个字节的位置
//
// 直接读ES文件时Infile就是文件偏移，Inpacket恒为0；
// 经PES取出的ES，Infile是所在PES包的包首位置，Inpacket是payload内的下标
//
type Offset struct {
	Infile   int64
	Inpacket int
}

func (o Offset) Compare(other Offset) int {
	if o.Infile != other.Infile {
		if o.Infile < other.Infile {
			return -1
		}
		return 1
	}
	if o.Inpacket != other.Inpacket {
		if o.Inpacket < other.Inpacket {
			return -1
		}
		return 1
	}
	return 0
}

func (o Offset) Before(other Offset) bool {
	return o.Compare(other) < 0
}

// Unit 一个start code分隔的ES单元
//
// Data以00 00 01打头，Data[3]是start code值；
// 对H.264来说这就是一个NAL unit，body里的防竞争字节原样保留
//
type Unit struct {
	StartCode byte
	StartPosn Offset
	Data      []byte
}

// ByteSource ES字节视图
//
// NextByte同时给出该字节的位置，unit扫描靠它记录start code的偏移
//
type ByteSource interface {
	NextByte() (b byte, posn Offset, err error)
	Seek(posn Offset) error
	Seekable() bool
}

// ReadData 从posn处读出length字节（可能跨多个PES包）
//
// 倒放输出阶段按catalog里记下的位置回读帧数据用
//
func ReadData(src ByteSource, posn Offset, length int) ([]byte, error) {
	if err := src.Seek(posn); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	for i := 0; i < length; i++ {
		b, _, err := src.NextByte()
		if err != nil {
			return nil, err
		}
		data[i] = b
	}
	return data, nil
}
