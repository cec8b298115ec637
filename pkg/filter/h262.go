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
	"github.com/q191201771/tstoolbox/pkg/h262"
)

// H262Filter 对H.262帧流做strip或rate过滤
//
// strip：留下I（allref时也留P），丢B。
// rate：计数器满freq时留最近的I；该留又不能留的点位用
// "重放上一帧"（返回nil frame）凑出稳定的输出频率
//
type H262Filter struct {
	Ctx *h262.Context

	Mode   Mode
	AllRef bool // 仅strip
	Freq   int  // 仅rate

	lastSeqHdr *h262.Picture
	newSeqHdr  bool

	hadPrevPicture bool

	count         int
	framesSeen    int
	framesWritten int
}

// Reset 重新过滤前清状态
func (f *H262Filter) Reset() {
	f.lastSeqHdr = nil
	f.newSeqHdr = false
	f.hadPrevPicture = false
	f.count = 0
	f.framesSeen = 0
	f.framesWritten = 0
}

// NextStrippedFrame 取下一个要保留的帧
//
// @return seqHdr 该帧用的sequence header，自上次返回后没变过时为nil
// @return frame  保留的帧
// @return seen   本次调用经手的picture数，I/P/B都算（含返回的那个）
//
func (f *H262Filter) NextStrippedFrame() (seqHdr, frame *h262.Picture, seen int, err error) {
	if f.Mode != ModeStrip {
		return nil, nil, 0, ErrFilter
	}
	for {
		pic, err := f.Ctx.NextFrame()
		if err != nil {
			return nil, nil, seen, err
		}

		if pic.IsPicture {
			seen++
			if pic.PictureCodingType == h262.PictureCodingI ||
				(pic.PictureCodingType == h262.PictureCodingP && f.AllRef) {
				var hdr *h262.Picture
				if f.newSeqHdr {
					hdr = f.lastSeqHdr
				}
				f.newSeqHdr = false
				nazalog.Debugf("keep %s picture", h262.PictureCodingStr(pic.PictureCodingType))
				return hdr, pic, seen, nil
			}
		} else if pic.IsSequenceHeader {
			if f.lastSeqHdr == nil || !pic.Same(f.lastSeqHdr) {
				f.lastSeqHdr = pic
				f.newSeqHdr = true
			}
		}
	}
}

// NextFilteredFrame 按频率取下一个要输出的帧
//
// frame为nil表示"把上一帧再输出一遍"来维持频率
//
func (f *H262Filter) NextFilteredFrame() (seqHdr, frame *h262.Picture, seen int, err error) {
	if f.Mode != ModeRate {
		return nil, nil, 0, ErrFilter
	}
	for {
		// 选中的I picture要带AFD，缺的让聚合器补
		f.Ctx.AddFakeAfd = true
		pic, err := f.Ctx.NextFrame()
		f.Ctx.AddFakeAfd = false
		if err != nil {
			return nil, nil, seen, err
		}

		if pic.IsPicture {
			f.count++
			seen++
			f.framesSeen++

			switch {
			case pic.PictureCodingType == h262.PictureCodingI && f.count < f.Freq:
				// 是I，但太早了
				nazalog.Debugf("%d/%d drop: too soon", f.count, f.Freq)
			case pic.PictureCodingType != h262.PictureCodingI:
				nazalog.Debugf("%d/%d drop: %s picture", f.count, f.Freq,
					h262.PictureCodingStr(pic.PictureCodingType))
				if f.Freq > 0 {
					wanted := f.framesSeen / f.Freq
					if wanted-f.framesWritten > 0 && f.hadPrevPicture {
						nazalog.Debugf("output last picture again")
						f.framesWritten++
						return nil, nil, seen, nil
					}
				}
			default:
				nazalog.Debugf("%d/%d keep", f.count, f.Freq)
				f.count = 0
				f.hadPrevPicture = true
				f.framesWritten++
				return f.lastSeqHdr, pic, seen, nil
			}
		} else if pic.IsSequenceHeader {
			f.lastSeqHdr = pic
		}
	}
}
