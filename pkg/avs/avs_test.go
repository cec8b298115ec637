// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avs

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tstoolbox/pkg/es"
)

func TestNextFrame(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x01, 0xb0, 0x12, 0x34, // sequence header
		0x00, 0x00, 0x01, 0xb3, 0xaa, 0xbb, // I frame
		0x00, 0x00, 0x01, 0x01, 0xcc, // slice
		0x00, 0x00, 0x01, 0xb6, 0x11, 0x22, 0x40, 0xdd, // P frame
		0x00, 0x00, 0x01, 0x02, 0xee, // slice
		0x00, 0x00, 0x01, 0xb1, // sequence end
	}
	ctx := NewContext(es.NewUnitScanner(es.NewFileSource(bytes.NewReader(data))))

	f, err := ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, f.IsSequenceHeader)

	f, err = ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, f.IsFrame)
	assert.Equal(t, PictureCodingI, f.PictureCodingType)
	assert.Equal(t, 2, len(f.Units))

	f, err = ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, PictureCodingP, f.PictureCodingType)
	assert.Equal(t, 2, len(f.Units))

	_, err = ctx.NextFrame()
	assert.Equal(t, io.EOF, err)
}
