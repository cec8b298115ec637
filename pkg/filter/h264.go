// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package filter

import (
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/avc"
)

// H264Filter 对H.264 access unit流做strip或rate过滤
//
// 能不能留P帧取决于上一个IDR之后有没有跳过参考帧，
// 跳过了还留P会解出花屏，宁可丢
//
type H264Filter struct {
	Ctx *avc.Context

	Mode   Mode
	AllRef bool // 仅strip
	Freq   int  // 仅rate

	// 上一个IDR之后跳过了参考帧
	skippedRefPic bool
	// 上一个留下的帧不是IDR（初值true，保证第一个IDR一定留）
	lastAcceptedWasNotIdr bool
	// 这轮过滤还没见过IDR
	notHadIdr bool

	hadPrevAccessUnit bool

	count         int
	framesSeen    int
	framesWritten int
}

// Reset 重新过滤前清状态
func (f *H264Filter) Reset() {
	f.skippedRefPic = false
	f.lastAcceptedWasNotIdr = true
	f.notHadIdr = true
	f.hadPrevAccessUnit = false
	f.count = 0
	f.framesSeen = 0
	f.framesWritten = 0
}

// NextStrippedFrame 取下一个要保留的access unit
func (f *H264Filter) NextStrippedFrame() (frame *avc.AccessUnit, seen int, err error) {
	if f.Mode != ModeStrip {
		return nil, 0, ErrFilter
	}
	for {
		au, err := f.Ctx.NextAccessUnit()
		if err != nil {
			return nil, seen, err
		}
		seen++

		keep := false
		switch {
		case au.PrimaryStart == nil:
			nazalog.Debugf("drop: no primary picture")
		case au.PrimaryStart.RefIdc == 0:
			nazalog.Debugf("drop: not reference")
		case f.AllRef:
			if au.PrimaryStart.Type == avc.NaluTypeIdrSlice || au.PrimaryStart.Type == avc.NaluTypeSlice {
				keep = true
				nazalog.Debugf("keep: reference picture")
			} else {
				nazalog.Debugf("drop: sequence or parameter set, etc.")
			}
		default:
			if au.PrimaryStart.Type == avc.NaluTypeIdrSlice {
				keep = true
				nazalog.Debugf("keep: idr picture")
			} else if au.PrimaryStart.Type == avc.NaluTypeSlice && au.AllSlicesI() {
				keep = true
				nazalog.Debugf("keep: all slices i")
			} else {
				nazalog.Debugf("drop: not idr or all slices i")
			}
		}

		if keep {
			return au, seen, nil
		}
	}
}

// NextFilteredFrame 按频率取下一个要输出的access unit
//
// frame为nil表示"把上一帧再输出一遍"来维持频率
//
func (f *H264Filter) NextFilteredFrame() (frame *avc.AccessUnit, seen int, err error) {
	if f.Mode != ModeRate {
		return nil, 0, ErrFilter
	}
	for {
		au, err := f.Ctx.NextAccessUnit()
		if err != nil {
			return nil, seen, err
		}
		f.count++
		seen++
		f.framesSeen++

		keep := false
		p := au.PrimaryStart
		switch {
		case p == nil:
			nazalog.Debugf("%d/%d drop: no primary picture", f.count, f.Freq)
		case p.RefIdc == 0:
			nazalog.Debugf("%d/%d drop: not a reference frame", f.count, f.Freq)
		case p.Type == avc.NaluTypeIdrSlice && f.lastAcceptedWasNotIdr:
			// IDR而上一个留的不是：不论计数直接留。IDR是后面帧回溯的极限，
			// 值钱，不嫌多
			keep = true
			f.notHadIdr = false
			f.skippedRefPic = false
			f.lastAcceptedWasNotIdr = false
			nazalog.Debugf("%d/%d keep: idr and last was not", f.count, f.Freq)
		case p.Type == avc.NaluTypeIdrSlice && f.notHadIdr:
			// 这轮还没出过IDR，先留一个垫底
			keep = true
			f.notHadIdr = false
			f.skippedRefPic = false
			f.lastAcceptedWasNotIdr = false
			nazalog.Debugf("%d/%d keep: first idr of filter run", f.count, f.Freq)
		case f.count < f.Freq:
			// 太早，跳过。注意跳过的是参考帧
			f.skippedRefPic = true
			nazalog.Debugf("%d/%d drop: too soon (skipping ref frame)", f.count, f.Freq)
		case p.Type == avc.NaluTypeIdrSlice:
			keep = true
			f.skippedRefPic = false
			f.lastAcceptedWasNotIdr = false
			nazalog.Debugf("%d/%d keep: idr", f.count, f.Freq)
		case au.AllSlicesI():
			keep = true
			f.lastAcceptedWasNotIdr = true
			nazalog.Debugf("%d/%d keep: i frame", f.count, f.Freq)
		case !f.skippedRefPic && au.AllSlicesIOrP():
			// 上一个IDR以来的参考帧都留全了，P帧可以安全输出
			keep = true
			f.lastAcceptedWasNotIdr = true
			nazalog.Debugf("%d/%d keep: p frame, no skipped ref frames", f.count, f.Freq)
		default:
			f.skippedRefPic = true
			nazalog.Debugf("%d/%d drop: ref frame skipped earlier", f.count, f.Freq)
		}

		if keep {
			f.hadPrevAccessUnit = true
			f.framesWritten++
			f.count = 0
			return au, seen, nil
		}

		if f.Freq > 0 {
			wanted := f.framesSeen / f.Freq
			if wanted-f.framesWritten > 0 && f.hadPrevAccessUnit {
				nazalog.Debugf("output last access unit again")
				f.framesWritten++
				return nil, seen, nil
			}
		}
	}
}
