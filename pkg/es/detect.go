// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package es

import (
	"github.com/q191201771/naza/pkg/nazalog"
)

// VideoKind ES里装的视频编码
type VideoKind int

const (
	KindUnknown VideoKind = iota
	KindH262
	KindH264
	KindAvs
)

func (k VideoKind) String() string {
	switch k {
	case KindH262:
		return "H.262"
	case KindH264:
		return "H.264"
	case KindAvs:
		return "AVS"
	}
	return "unknown"
}

// DetectVideoKind 看流开头的几个unit猜编码
//
// 判断完后调用方需要Rewind回起点。偶尔会猜错，工具层留了强制指定的开关
//
func DetectVideoKind(s *UnitScanner) VideoKind {
	votesH262 := 0
	votesH264 := 0
	votesAvs := 0

	for i := 0; i < 8; i++ {
		unit, err := s.NextUnit()
		if err != nil {
			break
		}
		code := unit.StartCode
		switch {
		case code == 0xb3 || code == 0xb8 || (code == 0xb5 && votesAvs == 0):
			votesH262 += 2
		case code == 0x00 && votesAvs == 0:
			votesH262++
		case code == 0xb0 || code == 0xb6:
			// AVS sequence header / picture
			votesAvs += 2
		case code&0x80 == 0 && code&0x60 != 0:
			// forbidden_zero_bit为0且nal_ref_idc像样，当NAL header看
			if t := code & 0x1f; t >= 1 && t <= 12 {
				votesH264 += 2
			}
		case code == 0x09 || code == 0x67 || code == 0x68:
			votesH264 += 2
		}
	}

	nazalog.Debugf("detect video kind. h262=%d, h264=%d, avs=%d", votesH262, votesH264, votesAvs)
	if votesAvs > votesH262 && votesAvs > votesH264 {
		return KindAvs
	}
	if votesH264 > votesH262 {
		return KindH264
	}
	if votesH262 > 0 {
		return KindH262
	}
	return KindUnknown
}
