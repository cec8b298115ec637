// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/reverse"
)

// Nalu 一个带H.264语义的ES unit
type Nalu struct {
	Unit es.Unit

	RefIdc uint8
	Type   uint8

	// 仅VCL NAL且slice header解析成功时非nil
	Slice *SliceHeader
}

// AccessUnit 一个access unit，对应一个coded picture
type AccessUnit struct {
	Units []*Nalu

	// 主图像的第一个VCL NAL，没有VCL时为nil
	PrimaryStart *Nalu
}

func (au *AccessUnit) sliceTypes() []uint32 {
	var ret []uint32
	for _, n := range au.Units {
		if n.Slice != nil {
			ret = append(ret, n.Slice.SliceType)
		}
	}
	return ret
}

// AllSlicesI 所有slice都是I
func (au *AccessUnit) AllSlicesI() bool {
	types := au.sliceTypes()
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		if NormalizeSliceType(t) != SliceTypeI {
			return false
		}
	}
	return true
}

// AllSlicesIOrP I之外允许P和SP
func (au *AccessUnit) AllSlicesIOrP() bool {
	types := au.sliceTypes()
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		switch NormalizeSliceType(t) {
		case SliceTypeI, SliceTypeP, SliceTypeSP:
		default:
			return false
		}
	}
	return true
}

// Bounds access unit首字节的位置和所有unit的总字节数
func (au *AccessUnit) Bounds() (es.Offset, int) {
	var total int
	for _, n := range au.Units {
		total += len(n.Unit.Data)
	}
	if len(au.Units) == 0 {
		return es.Offset{}, 0
	}
	return au.Units[0].Unit.StartPosn, total
}

// Data 所有unit数据拼起来
func (au *AccessUnit) Data() []byte {
	var total int
	for _, n := range au.Units {
		total += len(n.Unit.Data)
	}
	out := make([]byte, 0, total)
	for _, n := range au.Units {
		out = append(out, n.Unit.Data...)
	}
	return out
}

// ParamRecord 参数集在ES里的落点，倒放时回读重发
type ParamRecord = reverse.ParamRecord

// Context H.264流的access unit聚合器
//
// <ISO-14496-10.pdf> <7.4.1.2.4> AUD开新AU；VCL NAL的关键字段
// 跟上一个VCL不同也开新AU
//
type Context struct {
	scanner *es.UnitScanner

	spsDict map[uint32]Sps
	ppsDict map[uint32]Pps

	// 参数集落点按观察顺序保留最新值
	SpsRecords []ParamRecord
	PpsRecords []ParamRecord

	AccessUnitIndex uint32

	// AllRef 为true时全I/P的非IDR帧也进catalog
	AllRef bool

	Reverse *reverse.Data

	// 上一个VCL NAL的slice header，AU边界判断的参照
	prevVcl *Nalu

	// 当前攒着的AU
	pending []*Nalu

	// 自上一个IDR以来有没有跳过（没收进catalog的）参考帧
	skippedRefSinceIdr bool

	eof bool
}

func NewContext(scanner *es.UnitScanner) *Context {
	return &Context{
		scanner: scanner,
		spsDict: make(map[uint32]Sps),
		ppsDict: make(map[uint32]Pps),
	}
}

func (ctx *Context) Scanner() *es.UnitScanner {
	return ctx.scanner
}

func (ctx *Context) LookupSps(id uint32) (Sps, bool) {
	sps, ok := ctx.spsDict[id]
	return sps, ok
}

func (ctx *Context) LookupPps(id uint32) (Pps, bool) {
	pps, ok := ctx.ppsDict[id]
	return pps, ok
}

// Rewind 回到流头重新扫描，参数集缓存保留
func (ctx *Context) Rewind() error {
	ctx.prevVcl = nil
	ctx.pending = nil
	ctx.AccessUnitIndex = 0
	ctx.skippedRefSinceIdr = false
	ctx.eof = false
	if ctx.Reverse != nil {
		ctx.Reverse.Reset()
	}
	return ctx.scanner.Rewind(es.Offset{})
}

// NextAccessUnit 取下一个access unit
//
// 正常结束返回io.EOF（最后一个攒着的AU会先交付）
//
func (ctx *Context) NextAccessUnit() (*AccessUnit, error) {
	if ctx.eof {
		return nil, io.EOF
	}
	for {
		unit, err := ctx.scanner.NextUnit()
		if err != nil {
			if err == io.EOF || err == es.ErrShortUnit {
				ctx.eof = true
				if au := ctx.close(); au != nil {
					if err = ctx.deliver(au); err != nil {
						return nil, err
					}
					return au, nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		nalu := ctx.classify(unit)

		var closed *AccessUnit
		switch {
		case nalu.Type == NaluTypeAud:
			closed = ctx.close()
		case nalu.Slice != nil:
			if ctx.prevVcl != nil && startsNewPicture(ctx.prevVcl, nalu) {
				closed = ctx.close()
			}
			ctx.prevVcl = nalu
		case nalu.Type == NaluTypeSps || nalu.Type == NaluTypePps || nalu.Type == NaluTypeSei:
			// 参数集和SEI属于下一个主图像
			if ctx.hasVcl() {
				closed = ctx.close()
			}
		case nalu.Type == NaluTypeEoSeq || nalu.Type == NaluTypeEoStream:
			if ctx.hasVcl() {
				closed = ctx.close()
			}
		}

		ctx.pending = append(ctx.pending, nalu)

		if closed != nil {
			if err = ctx.deliver(closed); err != nil {
				return nil, err
			}
			return closed, nil
		}
	}
}

func (ctx *Context) classify(unit *es.Unit) *Nalu {
	nalu := &Nalu{
		Unit: *unit,
	}
	if len(unit.Data) < 4 {
		return nalu
	}
	header := unit.Data[3]
	if header&0x80 != 0 {
		nazalog.Warnf("forbidden_zero_bit set in nal header. b=%#x", header)
	}
	nalu.RefIdc = ParseNalRefIdc(header)
	nalu.Type = ParseNaluType(header)

	switch nalu.Type {
	case NaluTypeSps:
		rbsp := Nalu2Rbsp(unit.Data[3:])
		sps, err := ParseSps(rbsp)
		if err != nil {
			nazalog.Warnf("parse sps failed. err=%+v", err)
			break
		}
		ctx.spsDict[sps.SpsId] = sps
		ctx.rememberParam(&ctx.SpsRecords, sps.SpsId, unit)
	case NaluTypePps:
		rbsp := Nalu2Rbsp(unit.Data[3:])
		pps, err := ParsePps(rbsp)
		if err != nil {
			nazalog.Warnf("parse pps failed. err=%+v", err)
			break
		}
		ctx.ppsDict[pps.PpsId] = pps
		ctx.rememberParam(&ctx.PpsRecords, pps.PpsId, unit)
	case NaluTypeSlice, NaluTypeIdrSlice:
		rbsp := Nalu2Rbsp(unit.Data[3:])
		sh, err := ParseSliceHeader(rbsp, ctx.LookupSps, ctx.LookupPps)
		if err != nil {
			// slice header解析失败只影响边界判断，不中断扫描
			nazalog.Warnf("parse slice header failed. posn=%d/%d, err=%+v",
				unit.StartPosn.Infile, unit.StartPosn.Inpacket, err)
			break
		}
		nalu.Slice = &sh
	}
	return nalu
}

// 同一id的参数集重复出现时记最新的落点
func (ctx *Context) rememberParam(records *[]ParamRecord, id uint32, unit *es.Unit) {
	rec := ParamRecord{
		Id:     id,
		Posn:   unit.StartPosn,
		Length: len(unit.Data),
	}
	for i := range *records {
		if (*records)[i].Id == id {
			(*records)[i] = rec
			return
		}
	}
	*records = append(*records, rec)
}

func (ctx *Context) hasVcl() bool {
	for _, n := range ctx.pending {
		if n.Slice != nil {
			return true
		}
	}
	return false
}

func (ctx *Context) close() *AccessUnit {
	if len(ctx.pending) == 0 {
		return nil
	}
	au := &AccessUnit{
		Units: ctx.pending,
	}
	for _, n := range au.Units {
		if n.Slice != nil {
			au.PrimaryStart = n
			break
		}
	}
	ctx.pending = nil
	if au.PrimaryStart == nil && !ctx.eof {
		// AUD/SEI攒了一堆却没等到VCL，继续往下攒
		ctx.pending = au.Units
		return nil
	}
	return au
}

func (ctx *Context) deliver(au *AccessUnit) error {
	ctx.AccessUnitIndex++
	if ctx.Reverse == nil {
		return nil
	}
	return ctx.maybeRemember(au)
}

// catalog收录规则：IDR必收；全I的非IDR必收；全I/P的非IDR只有
// 在allref且上一个IDR之后没跳过参考帧时才收
func (ctx *Context) maybeRemember(au *AccessUnit) error {
	p := au.PrimaryStart
	if p == nil {
		return nil
	}

	var kind reverse.FrameKind
	keep := false
	switch {
	case p.Type == NaluTypeIdrSlice:
		keep = true
		kind = reverse.KindIdr
		ctx.skippedRefSinceIdr = false
	case p.Type == NaluTypeSlice && au.AllSlicesI():
		keep = true
		kind = reverse.KindAllI
	case p.Type == NaluTypeSlice && au.AllSlicesIOrP():
		if ctx.AllRef && !ctx.skippedRefSinceIdr {
			keep = true
			kind = reverse.KindAllIOrP
		}
	}

	if !keep {
		if p.RefIdc != 0 {
			ctx.skippedRefSinceIdr = true
		}
		return nil
	}

	posn, length := au.Bounds()
	if err := ctx.Reverse.Remember(ctx.AccessUnitIndex, posn, length, kind, 0); err != nil {
		return err
	}
	nazalog.Debugf("remember %s access unit %d at %d/%d for %d",
		kind, ctx.AccessUnitIndex, posn.Infile, posn.Inpacket, length)
	return nil
}

// <ISO-14496-10.pdf> <7.4.1.2.4>
func startsNewPicture(prev, cur *Nalu) bool {
	a := prev.Slice
	b := cur.Slice
	if a == nil || b == nil {
		return false
	}
	if a.FrameNum != b.FrameNum {
		return true
	}
	if a.PpsId != b.PpsId {
		return true
	}
	if a.FieldPicFlag != b.FieldPicFlag {
		return true
	}
	if a.FieldPicFlag == 1 && a.BottomFieldFlag != b.BottomFieldFlag {
		return true
	}
	if (prev.RefIdc == 0) != (cur.RefIdc == 0) {
		return true
	}
	prevIdr := prev.Type == NaluTypeIdrSlice
	curIdr := cur.Type == NaluTypeIdrSlice
	if prevIdr != curIdr {
		return true
	}
	if prevIdr && curIdr && a.IdrPicId != b.IdrPicId {
		return true
	}
	if a.PicOrderCntLsb != b.PicOrderCntLsb || a.DeltaPicOrderCntBottom != b.DeltaPicOrderCntBottom {
		return true
	}
	if a.DeltaPicOrderCnt0 != b.DeltaPicOrderCnt0 || a.DeltaPicOrderCnt1 != b.DeltaPicOrderCnt1 {
		return true
	}
	return false
}
