// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// esinfo 报告一个ES文件里的帧结构（H.262/H.264/AVS）
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/avc"
	"github.com/q191201771/tstoolbox/pkg/avs"
	"github.com/q191201771/tstoolbox/pkg/base"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/h262"
	"github.com/q191201771/tstoolbox/pkg/pes"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

type options struct {
	verbose bool
	quiet   bool
	usePes  bool
	max     int

	forceKind es.VideoKind

	inputName string
}

func main() {
	opt := parseFlag()

	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
		switch {
		case opt.verbose:
			option.Level = nazalog.LevelDebug
		case opt.quiet:
			option.Level = nazalog.LevelError
		default:
			option.Level = nazalog.LevelInfo
		}
	})
	defer nazalog.Sync()

	if err := run(opt); err != nil && err != io.EOF && err != es.ErrShortUnit {
		nazalog.Errorf("esinfo failed. err=%+v", err)
		os.Exit(1)
	}
}

func run(opt *options) error {
	fp, err := os.Open(opt.inputName)
	if err != nil {
		return err
	}
	defer fp.Close()

	var src es.ByteSource
	if opt.usePes {
		var first [1]byte
		if _, err = io.ReadFull(fp, first[:]); err != nil {
			return err
		}
		if _, err = fp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if first[0] == 0x47 {
			src = es.NewPesSource(pes.NewDemuxer(ts.NewPacketReader(fp), func(option *pes.DemuxerOption) {
				option.VideoOnly = true
			}))
		} else {
			src = es.NewPesSource(pes.NewPsReader(fp))
		}
	} else {
		src = es.NewFileSource(fp)
	}
	scanner := es.NewUnitScanner(src)

	kind := opt.forceKind
	if kind == es.KindUnknown {
		kind = es.DetectVideoKind(scanner)
		if err = scanner.Rewind(es.Offset{}); err != nil {
			return err
		}
	}
	base.Reportf("Stream is %s\n", kind)

	switch kind {
	case es.KindH262:
		return reportH262(scanner, opt)
	case es.KindH264:
		return reportH264(scanner, opt)
	case es.KindAvs:
		return reportAvs(scanner, opt)
	}
	return fmt.Errorf("esinfo: cannot determine stream kind, use -h262/-h264")
}

func reportH262(scanner *es.UnitScanner, opt *options) error {
	ctx := h262.NewContext(scanner)
	counts := make(map[uint8]int)
	frames := 0
	for {
		pic, err := ctx.NextFrame()
		if err != nil {
			printH262Summary(counts, frames)
			return err
		}
		if pic.IsPicture {
			frames++
			counts[pic.PictureCodingType]++
			if opt.verbose {
				posn, length := pic.Bounds()
				base.Reportf("%08d/%04d: %s picture, %d units, %d bytes\n",
					posn.Infile, posn.Inpacket, h262.PictureCodingStr(pic.PictureCodingType),
					len(pic.Units), length)
			}
		} else if pic.IsSequenceHeader && opt.verbose {
			base.Reportf("sequence header, aspect ratio info %d\n", pic.AspectRatioInfo)
		}
		if opt.max > 0 && frames >= opt.max {
			printH262Summary(counts, frames)
			return nil
		}
	}
}

func printH262Summary(counts map[uint8]int, frames int) {
	base.Reportf("Found %d frames: %d I, %d P, %d B\n", frames,
		counts[h262.PictureCodingI], counts[h262.PictureCodingP], counts[h262.PictureCodingB])
}

func reportH264(scanner *es.UnitScanner, opt *options) error {
	ctx := avc.NewContext(scanner)
	idr, allI, other := 0, 0, 0
	frames := 0
	for {
		au, err := ctx.NextAccessUnit()
		if err != nil {
			base.Reportf("Found %d access units: %d IDR, %d all-I, %d other\n", frames, idr, allI, other)
			return err
		}
		frames++
		switch {
		case au.PrimaryStart == nil:
			other++
		case au.PrimaryStart.Type == avc.NaluTypeIdrSlice:
			idr++
		case au.AllSlicesI():
			allI++
		default:
			other++
		}
		if opt.verbose && au.PrimaryStart != nil {
			posn, length := au.Bounds()
			base.Reportf("%08d/%04d: %s access unit, %d NALs, %d bytes\n",
				posn.Infile, posn.Inpacket, avc.NaluTypeReadable(au.PrimaryStart.Type),
				len(au.Units), length)
		}
		if opt.max > 0 && frames >= opt.max {
			base.Reportf("Found %d access units: %d IDR, %d all-I, %d other\n", frames, idr, allI, other)
			return nil
		}
	}
}

func reportAvs(scanner *es.UnitScanner, opt *options) error {
	ctx := avs.NewContext(scanner)
	counts := make(map[uint8]int)
	frames := 0
	for {
		frame, err := ctx.NextFrame()
		if err != nil {
			base.Reportf("Found %d AVS frames: %d I, %d P, %d B\n", frames,
				counts[avs.PictureCodingI], counts[avs.PictureCodingP], counts[avs.PictureCodingB])
			return err
		}
		if frame.IsFrame {
			frames++
			counts[frame.PictureCodingType]++
			if opt.verbose {
				posn, length := frame.Bounds()
				base.Reportf("%08d/%04d: %s frame, %d units, %d bytes\n",
					posn.Infile, posn.Inpacket, avs.PictureCodingStr(frame.PictureCodingType),
					len(frame.Units), length)
			}
		}
		if opt.max > 0 && frames >= opt.max {
			return nil
		}
	}
}

func parseFlag() *options {
	opt := &options{}
	flag.BoolVar(&opt.verbose, "verbose", false, "report every frame")
	flag.BoolVar(&opt.verbose, "v", false, "same as -verbose")
	flag.BoolVar(&opt.quiet, "quiet", false, "only output error messages")
	flag.BoolVar(&opt.quiet, "q", false, "same as -quiet")
	errTo := flag.String("err", "stdout", "write error messages to 'stdout' or 'stderr'")
	usePes := flag.Bool("pes", false, "the input file is TS or PS")
	flag.IntVar(&opt.max, "max", 0, "maximum number of frames to report")
	h264 := flag.Bool("h264", false, "force MPEG-4/AVC")
	h262Flag := flag.Bool("h262", false, "force MPEG-2")
	avsFlag := flag.Bool("avs", false, "force AVS")
	flag.Parse()

	switch *errTo {
	case "stdout":
		base.RedirectReportStdout()
	case "stderr":
		base.RedirectReportStderr()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "### esinfo: unrecognised option '%s' to -err\n", *errTo)
		os.Exit(1)
	}

	switch {
	case *h264:
		opt.forceKind = es.KindH264
	case *h262Flag:
		opt.forceKind = es.KindH262
	case *avsFlag:
		opt.forceKind = es.KindAvs
	}

	opt.usePes = *usePes

	args := flag.Args()
	if len(args) < 1 {
		_, _ = fmt.Fprintf(os.Stderr, "### esinfo: no input file specified\n")
		flag.Usage()
		os.Exit(1)
	}
	opt.inputName = args[0]
	return opt
}
