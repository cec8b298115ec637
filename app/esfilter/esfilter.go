// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// esfilter 在ES里快进：-strip只留锚点帧，否则按-freq挑帧
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/avc"
	"github.com/q191201771/tstoolbox/pkg/base"
	"github.com/q191201771/tstoolbox/pkg/es"
	"github.com/q191201771/tstoolbox/pkg/filter"
	"github.com/q191201771/tstoolbox/pkg/h262"
	"github.com/q191201771/tstoolbox/pkg/pes"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

type options struct {
	verbose bool
	quiet   bool

	usePes bool
	asTs   bool

	strip  bool
	allRef bool
	freq   int
	max    int

	forceKind es.VideoKind

	inputName  string
	outputName string
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

	if err := run(opt); err != nil {
		nazalog.Errorf("esfilter failed. err=%+v", err)
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

	out, err := ts.NewFileSink(opt.outputName)
	if err != nil {
		return err
	}
	defer out.Close()

	var tsWriter *ts.Writer
	var streamType uint8
	if opt.asTs {
		tsWriter = ts.NewWriter(out)
		switch kind {
		case es.KindH264:
			streamType = ts.StreamTypeAvc
		default:
			streamType = ts.StreamTypeMpeg2Video
		}
		if err = tsWriter.WriteProgramData(ts.DefaultTsid, ts.DefaultProgramNumber,
			ts.DefaultPidPmt, ts.DefaultPidVideo,
			[]ts.PmtProgramElement{{StreamType: streamType, Pid: ts.DefaultPidVideo}}); err != nil {
			return err
		}
	}

	write := func(data []byte) error {
		if tsWriter != nil {
			return tsWriter.WriteFrame(&ts.Frame{
				Pid: ts.DefaultPidVideo,
				Sid: pes.SidDefaultVideo,
				Raw: data,
			})
		}
		_, err := out.Write(data)
		return err
	}

	switch kind {
	case es.KindH262:
		return filterH262(scanner, write, opt)
	case es.KindH264:
		return filterH264(scanner, write, opt)
	}
	return fmt.Errorf("esfilter: unexpected type of video data: %s", kind)
}

func filterH262(scanner *es.UnitScanner, write func([]byte) error, opt *options) error {
	f := &filter.H262Filter{
		Ctx:    h262.NewContext(scanner),
		Mode:   filter.ModeRate,
		AllRef: opt.allRef,
		Freq:   opt.freq,
	}
	if opt.strip {
		f.Mode = filter.ModeStrip
	}
	f.Reset()

	written := 0
	var lastData []byte
	for {
		var seqHdr, frame *h262.Picture
		var err error
		if opt.strip {
			seqHdr, frame, _, err = f.NextStrippedFrame()
		} else {
			seqHdr, frame, _, err = f.NextFilteredFrame()
		}
		if err != nil {
			if err == io.EOF || err == es.ErrShortUnit {
				break
			}
			return err
		}
		if seqHdr != nil {
			if err = write(seqHdr.Data()); err != nil {
				return err
			}
		}
		if frame == nil {
			// 重放上一帧维持频率
			if lastData == nil {
				continue
			}
			if err = write(lastData); err != nil {
				return err
			}
		} else {
			lastData = frame.Data()
			if err = write(lastData); err != nil {
				return err
			}
		}
		written++
		if opt.max > 0 && written >= opt.max {
			break
		}
	}
	if !opt.quiet {
		base.Reportf("Wrote %d pictures\n", written)
	}
	return nil
}

func filterH264(scanner *es.UnitScanner, write func([]byte) error, opt *options) error {
	f := &filter.H264Filter{
		Ctx:    avc.NewContext(scanner),
		Mode:   filter.ModeRate,
		AllRef: opt.allRef,
		Freq:   opt.freq,
	}
	if opt.strip {
		f.Mode = filter.ModeStrip
	}
	f.Reset()

	written := 0
	var lastData []byte
	for {
		var frame *avc.AccessUnit
		var err error
		if opt.strip {
			frame, _, err = f.NextStrippedFrame()
		} else {
			frame, _, err = f.NextFilteredFrame()
		}
		if err != nil {
			if err == io.EOF || err == es.ErrShortUnit {
				break
			}
			return err
		}
		if frame == nil {
			if lastData == nil {
				continue
			}
			if err = write(lastData); err != nil {
				return err
			}
		} else {
			lastData = frame.Data()
			if err = write(lastData); err != nil {
				return err
			}
		}
		written++
		if opt.max > 0 && written >= opt.max {
			break
		}
	}
	if !opt.quiet {
		base.Reportf("Wrote %d access units\n", written)
	}
	return nil
}

func parseFlag() *options {
	opt := &options{}
	flag.BoolVar(&opt.verbose, "verbose", false, "output additional (debugging) messages")
	flag.BoolVar(&opt.verbose, "v", false, "same as -verbose")
	flag.BoolVar(&opt.quiet, "quiet", false, "only output error messages")
	flag.BoolVar(&opt.quiet, "q", false, "same as -quiet")
	errTo := flag.String("err", "stdout", "write error messages to 'stdout' or 'stderr'")
	flag.BoolVar(&opt.strip, "strip", false, "keep all anchor frames instead of rate selection")
	flag.BoolVar(&opt.allRef, "allref", false, "with -strip, keep P (reference) frames as well")
	flag.IntVar(&opt.freq, "freq", 8, "frequency of frames to try to keep")
	flag.IntVar(&opt.max, "max", 0, "maximum number of frames to write")
	usePes := flag.Bool("pes", false, "the input file is TS or PS")
	tsout := flag.Bool("tsout", false, "output H.222 Transport Stream")
	h264 := flag.Bool("h264", false, "force MPEG-4/AVC")
	h262Flag := flag.Bool("h262", false, "force MPEG-2")
	flag.Parse()

	switch *errTo {
	case "stdout":
		base.RedirectReportStdout()
	case "stderr":
		base.RedirectReportStderr()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "### esfilter: unrecognised option '%s' to -err\n", *errTo)
		os.Exit(1)
	}

	opt.usePes = *usePes
	opt.asTs = *tsout
	switch {
	case *h264:
		opt.forceKind = es.KindH264
	case *h262Flag:
		opt.forceKind = es.KindH262
	}

	args := flag.Args()
	if len(args) < 2 {
		_, _ = fmt.Fprintf(os.Stderr, "### esfilter: input and output files required\n")
		flag.Usage()
		os.Exit(1)
	}
	opt.inputName = args[0]
	opt.outputName = args[1]
	return opt
}
