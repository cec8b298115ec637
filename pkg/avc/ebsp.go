// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/naza/pkg/nazalog"
)

// Nalu2Rbsp 去掉防竞争字节
//
// <ISO-14496-10.pdf> <7.4.1.1> 00 00 03表示真实数据00 00，03丢弃；
// 裸的00 00 00不该出现，见到了只告警不中断
//
// @param nalu 不含start code prefix，从nal header起
//
func Nalu2Rbsp(nalu []byte) []byte {
	rbsp := make([]byte, 0, len(nalu))
	zero := 0
	for i := 0; i < len(nalu); i++ {
		b := nalu[i]
		if zero >= 2 {
			if b == 0x03 {
				zero = 0
				continue
			}
			if b == 0x00 {
				nazalog.Warnf("emulation prevention violated: 00 00 00 inside nalu at %d", i)
			}
		}
		if b == 0x00 {
			zero++
		} else {
			zero = 0
		}
		rbsp = append(rbsp, b)
	}
	return rbsp
}
