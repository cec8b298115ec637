// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h262

import (
	"bytes"
	"io"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/reverse"
)

// temporal_reference=5，picture_coding_type=I
func pictureHeader() []byte {
	return []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x48, 0xff, 0xff}
}

// picture coding extension，picture_structure按参数
func pictureCodingExt(structure uint8) []byte {
	return []byte{0x00, 0x00, 0x01, 0xb5, 0x80, 0x00, structure, 0xff}
}

func slice(code uint8) []byte {
	return []byte{0x00, 0x00, 0x01, code, 0xaa, 0xbb}
}

func seqHeader() []byte {
	return []byte{0x00, 0x00, 0x01, 0xb3, 0x12, 0x34, 0x56, 0x28, 0xff, 0xff}
}

func seqEnd() []byte {
	return []byte{0x00, 0x00, 0x01, 0xb7}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newContext(data []byte) *Context {
	return NewContext(es.NewUnitScanner(es.NewFileSource(bytes.NewReader(data))))
}

func TestFieldPairJoin(t *testing.T) {
	// 同一temporal_reference的top/bottom两场并成一帧
	data := concat(
		pictureHeader(), pictureCodingExt(PictureStructureTop), slice(0x01),
		pictureHeader(), pictureCodingExt(PictureStructureBottom), slice(0x01), slice(0x02),
		seqEnd(),
	)
	ctx := newContext(data)

	pic, err := ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, pic.IsPicture)
	assert.Equal(t, true, pic.WasTwoFields)
	assert.Equal(t, uint16(5), pic.TemporalReference)
	assert.Equal(t, PictureCodingI, pic.PictureCodingType)
	// 两场的unit按顺序都在
	assert.Equal(t, 7, len(pic.Units))
}

func TestFrameStructureNeverJoins(t *testing.T) {
	data := concat(
		pictureHeader(), pictureCodingExt(PictureStructureFrame), slice(0x01),
		pictureHeader(), pictureCodingExt(PictureStructureFrame), slice(0x01),
		seqEnd(),
	)
	ctx := newContext(data)

	pic, err := ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, false, pic.WasTwoFields)
	assert.Equal(t, 3, len(pic.Units))

	pic, err = ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, false, pic.WasTwoFields)
}

func TestSequenceHeaderAggregate(t *testing.T) {
	data := concat(
		seqHeader(), pictureCodingExt(PictureStructureFrame),
		pictureHeader(), slice(0x01),
		seqEnd(),
	)
	ctx := newContext(data)

	pic, err := ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, pic.IsSequenceHeader)
	assert.Equal(t, 2, len(pic.Units))

	pic, err = ctx.NextFrame()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, pic.IsPicture)
}

func TestRememberReverse(t *testing.T) {
	data := concat(
		seqHeader(),
		pictureHeader(), slice(0x01), // I picture
		seqEnd(),
	)
	ctx := newContext(data)
	ctx.Reverse = reverse.NewData(false)

	for {
		_, err := ctx.NextFrame()
		if err != nil {
			assert.Equal(t, io.EOF, err)
			break
		}
	}

	// 一条sequence header + 一条I picture
	assert.Equal(t, 2, ctx.Reverse.Length())
	assert.Equal(t, true, ctx.Reverse.Entries[0].SeqHdr)
	assert.Equal(t, reverse.KindI, ctx.Reverse.Entries[1].Kind)
	assert.Equal(t, es.Offset{Infile: 0}, ctx.Reverse.Entries[0].Posn)
	assert.Equal(t, int64(10), ctx.Reverse.Entries[1].Posn.Infile)
	// I picture = picture header + slice
	assert.Equal(t, len(pictureHeader())+len(slice(0x01)), ctx.Reverse.Entries[1].Length)
}
