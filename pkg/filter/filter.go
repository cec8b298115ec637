// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package filter 在ES里快进：只留I（可选I+P）帧，或者按目标频率挑帧
package filter

import "errors"

var ErrFilter = errors.New("tstoolbox.filter: fxxk")

// Mode 两种过滤方式
type Mode int

const (
	// ModeStrip 保留所有够格的锚点帧，丢掉其余
	ModeStrip Mode = iota
	// ModeRate 目标是近似"每freq帧留一帧"
	ModeRate
)
