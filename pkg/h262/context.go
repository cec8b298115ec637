// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h262

import (
	"io"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/reverse"
)

// Context H.262流的picture聚合器
//
// 单线程，NextFrame逐帧往外吐；挂上Reverse后顺带把锚点记进catalog
//
type Context struct {
	scanner *es.UnitScanner

	// 聚合picture时多读出来的下一个item
	lastItem *Item

	PictureIndex uint32

	// AllRef 为true时P picture也进catalog
	AllRef bool

	// AddFakeAfd 要求I picture一定带AFD，缺的在首个slice前补一个
	AddFakeAfd bool

	Reverse *reverse.Data

	lastAfd         byte
	lastAspectRatio uint8

	// catalog里最后记下的sequence header，内容相同的不再记
	lastRememberedSeqHdr *Picture
}

func NewContext(scanner *es.UnitScanner) *Context {
	return &Context{
		scanner: scanner,
		lastAfd: UnsetAfd,
	}
}

func (ctx *Context) Scanner() *es.UnitScanner {
	return ctx.scanner
}

// Rewind 回到流头重新扫描
func (ctx *Context) Rewind() error {
	ctx.lastItem = nil
	ctx.PictureIndex = 0
	ctx.lastRememberedSeqHdr = nil
	if ctx.Reverse != nil {
		ctx.Reverse.Reset()
	}
	return ctx.scanner.Rewind(es.Offset{})
}

// NextFrame 取下一个帧级picture
//
// 场图会跟下一场并成帧；挂了Reverse的话，聚合出的I（和allref下的P）
// 连同变化了的sequence header记入catalog
//
func (ctx *Context) NextFrame() (*Picture, error) {
	pic, err := ctx.nextSinglePicture()
	if err != nil {
		return nil, err
	}

	if pic.IsField() {
		if err = ctx.nextFieldOfPair(pic, true); err != nil {
			return nil, err
		}
	}

	if ctx.Reverse != nil {
		if err = ctx.maybeRemember(pic); err != nil {
			return nil, err
		}
	}
	return pic, nil
}

// 聚合一个"picture"：从picture header/sequence header/sequence end开始。
// picture在slice之后遇到第一个非slice item时结束；sequence header遇到
// extension和user data以外的item时结束。聚合之间不是这三者之一的item
// （比如GOP header）被跳过，不进任何聚合
func (ctx *Context) nextSinglePicture() (*Picture, error) {
	item := ctx.lastItem
	ctx.lastItem = nil

	// 找起始item
	for {
		if item == nil {
			var err error
			item, err = NextItem(ctx.scanner)
			if err != nil {
				return nil, err
			}
		}
		if item.IsPicture() || item.IsSeqHeader() || item.IsSeqEnd() {
			break
		}
		nazalog.Debugf("skip leading %s item", StartCodeStr(item.Unit.StartCode))
		item = nil
	}

	inPicture := item.IsPicture()
	inSeqHeader := item.IsSeqHeader()
	pic := newPictureFromItem(ctx, item)

	if item.IsSeqEnd() {
		return pic, nil
	}

	lastWasSlice := false
	hadAfd := false

	for {
		next, err := NextItem(ctx.scanner)
		if err != nil {
			if err == io.EOF || err == es.ErrShortUnit {
				ctx.finishPicture(pic, inPicture)
				return pic, nil
			}
			return nil, err
		}

		if inPicture {
			// slice后面跟了非slice，picture就到头了
			if lastWasSlice && !next.IsSlice() {
				ctx.lastItem = next
				break
			}
			lastWasSlice = next.IsSlice()
		} else if inSeqHeader {
			// sequence header带着extension和user data，撞到别的就结束
			if !next.IsExtension() && !next.IsUserData() {
				ctx.lastItem = next
				break
			}
		}

		if inPicture {
			if next.IsAfdUserData() {
				ctx.extractAfd(next, pic)
				hadAfd = true
			} else if ctx.AddFakeAfd && !hadAfd && next.IsSlice() &&
				pic.PictureCodingType == PictureCodingI {
				// 该补AFD的点：I picture的第一个slice之前
				pic.appendItem(fakeAfdItem(UnsetAfd))
				pic.Afd = UnsetAfd
				pic.IsRealAfd = false
				hadAfd = true
			}
		}

		pic.appendItem(next)
	}

	ctx.finishPicture(pic, inPicture)
	return pic, nil
}

func (ctx *Context) finishPicture(pic *Picture, inPicture bool) {
	if inPicture {
		ctx.PictureIndex++
	} else if pic.IsSequenceHeader {
		ctx.lastAspectRatio = pic.AspectRatioInfo
	}
}

// 场图配对：下一picture是互补场且temporal_reference相同则并帧；
// 不是场丢掉当前场；是场但配不上就丢掉第一场重试一次
func (ctx *Context) nextFieldOfPair(pic *Picture, firstTime bool) error {
	second, err := ctx.nextSinglePicture()
	if err != nil {
		return err
	}

	if !second.IsField() {
		nazalog.Warnf("field followed by a %s, ignoring the field",
			pictureOrSeqHeaderStr(second))
		*pic = *second
		return nil
	}

	if pic.TemporalReference == second.TemporalReference &&
		pic.PictureStructure != second.PictureStructure {
		pic.mergeFields(second)
		return nil
	}

	if firstTime {
		nazalog.Warnf("field with temporal ref %d followed by field with temporal ref %d, ignoring first field",
			pic.TemporalReference, second.TemporalReference)
		*pic = *second
		return ctx.nextFieldOfPair(pic, false)
	}

	nazalog.Errorf("adjacent fields do not share temporal references, unable to match fields up")
	return ErrH262
}

func (ctx *Context) maybeRemember(pic *Picture) error {
	switch {
	case pic.IsPicture:
		if pic.PictureCodingType == PictureCodingI ||
			(pic.PictureCodingType == PictureCodingP && ctx.AllRef) {
			posn, length := pic.Bounds()
			kind := reverse.KindI
			if pic.PictureCodingType == PictureCodingP {
				kind = reverse.KindP
			}
			if err := ctx.Reverse.Remember(ctx.PictureIndex, posn, length, kind, pic.Afd); err != nil {
				return err
			}
			nazalog.Debugf("remember %s picture %d at %d/%d for %d",
				PictureCodingStr(pic.PictureCodingType), ctx.PictureIndex, posn.Infile, posn.Inpacket, length)
		}
	case pic.IsSequenceHeader:
		// 跟上一条记进去的一样就不重复记
		if pic.Same(ctx.lastRememberedSeqHdr) {
			return nil
		}
		posn, length := pic.Bounds()
		if err := ctx.Reverse.Remember(0, posn, length, reverse.KindSeqHeader, 0); err != nil {
			return err
		}
		ctx.lastRememberedSeqHdr = pic
		nazalog.Debugf("remember sequence header at %d/%d for %d", posn.Infile, posn.Inpacket, length)
	}
	return nil
}

func (ctx *Context) extractAfd(item *Item, pic *Picture) {
	d := item.Unit.Data
	switch {
	case d[8] == 0x41 && len(d) >= 10:
		if d[9]&0xf0 != 0xf0 {
			nazalog.Warnf("bad afd %#x (reserved bits not 1111)", d[9])
		}
		pic.Afd = d[9]
		pic.IsRealAfd = true
		ctx.lastAfd = pic.Afd
	case d[8] == 0x01:
		pic.Afd = UnsetAfd
		pic.IsRealAfd = true
	default:
		nazalog.Warnf("afd datastructure malformed: flag byte is %#x", d[8])
	}
}

// 人造的AFD user data unit，位置取0值（不来自输入流）
func fakeAfdItem(afd byte) *Item {
	return &Item{
		Unit: es.Unit{
			StartCode: StartCodeUserData,
			Data:      []byte{0x00, 0x00, 0x01, 0xb2, 0x44, 0x54, 0x47, 0x31, 0x41, afd},
		},
	}
}

func pictureOrSeqHeaderStr(pic *Picture) string {
	if pic.IsPicture {
		return "frame"
	}
	return "sequence header"
}
