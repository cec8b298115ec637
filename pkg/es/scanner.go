// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package es

import (
	"io"
)

// UnitScanner 在ES字节流里找00 00 01，切出一个个unit
//
// unit从它的00 00 01起，到下一个prefix（或EOF）止；
// 紧贴下一个prefix的一串0x00不属于任何unit。
// prefix跨PES包也认，位置跟着字节本身走
//
type UnitScanner struct {
	src ByteSource

	// 扫描上一个unit时顺带消费掉的下一个prefix
	havePrefix bool
	prefixPosn Offset

	units int64
}

func NewUnitScanner(src ByteSource) *UnitScanner {
	return &UnitScanner{
		src: src,
	}
}

func (s *UnitScanner) Source() ByteSource {
	return s.src
}

// UnitCount 已扫出的unit数
func (s *UnitScanner) UnitCount() int64 {
	return s.units
}

// Rewind 回到流的某个unit起点重新扫描
func (s *UnitScanner) Rewind(posn Offset) error {
	if err := s.src.Seek(posn); err != nil {
		return err
	}
	s.havePrefix = false
	return nil
}

// NextUnit 取下一个unit
//
// 正常结束返回io.EOF；EOF处只剩prefix没有内容时返回ErrShortUnit
//
func (s *UnitScanner) NextUnit() (*Unit, error) {
	start, err := s.findPrefix()
	if err != nil {
		return nil, err
	}

	code, _, err := s.src.NextByte()
	if err != nil {
		if err == io.EOF {
			return nil, ErrShortUnit
		}
		return nil, err
	}

	unit := &Unit{
		StartCode: code,
		StartPosn: start,
		Data:      []byte{0x00, 0x00, 0x01, code},
	}

	// 最近两个已读字节的位置，撞上prefix时用来定位它的第一个0x00
	var prev2, prev1 Offset

	for {
		b, posn, err := s.src.NextByte()
		if err != nil {
			if err == io.EOF {
				s.units++
				return unit, nil
			}
			return nil, err
		}
		unit.Data = append(unit.Data, b)

		n := len(unit.Data)
		if b == 0x01 && n >= 7 && unit.Data[n-2] == 0x00 && unit.Data[n-3] == 0x00 {
			// 撞上下一个unit的prefix了
			s.havePrefix = true
			s.prefixPosn = prev2
			unit.Data = unit.Data[:n-3]
			// prefix前面紧贴的0不属于本unit
			unit.Data = trimTrailingZeros(unit.Data)
			s.units++
			return unit, nil
		}
		prev2, prev1 = prev1, posn
	}
}

// findPrefix 消费到下一个00 00 01之后，返回prefix首字节位置
func (s *UnitScanner) findPrefix() (Offset, error) {
	if s.havePrefix {
		s.havePrefix = false
		return s.prefixPosn, nil
	}
	zero := 0
	var posns [2]Offset
	for {
		b, posn, err := s.src.NextByte()
		if err != nil {
			return Offset{}, err
		}
		if b == 0x01 && zero >= 2 {
			return posns[0], nil
		}
		if b == 0x00 {
			if zero < 2 {
				posns[zero] = posn
			} else {
				// 多于两个0时，prefix用的是最后两个
				posns[0] = posns[1]
				posns[1] = posn
			}
			zero++
		} else {
			zero = 0
		}
	}
}

func trimTrailingZeros(b []byte) []byte {
	n := len(b)
	// 别把prefix和start code削没了
	for n > 4 && b[n-1] == 0x00 {
		n--
	}
	return b[:n]
}
