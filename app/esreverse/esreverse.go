// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// esreverse 把H.264或H.262的ES倒过来输出
//
// 正向扫一遍，把能独立解码的帧（I/IDR，可选P）的位置记成目录，
// 再按目录倒序把帧重新发出去，输出可以是ES或TS
//
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
	"github.com/q191201771/tstoolbox/pkg/h262"
	"github.com/q191201771/tstoolbox/pkg/pes"
	"github.com/q191201771/tstoolbox/pkg/reverse"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

type options struct {
	verbose bool
	quiet   bool

	usePes    bool
	useServer bool
	asTs      bool
	useStdout bool
	host      string

	max  int
	freq int

	forceKind es.VideoKind

	inputName  string
	outputName string
}

func main() {
	opt := parseFlag()

	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
		// stdout被数据流占用时日志只能闭嘴
		option.IsToStdout = !opt.useStdout
		option.IsRotateDaily = false
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
		nazalog.Errorf("esreverse failed. err=%+v", err)
		os.Exit(1)
	}
}

func run(opt *options) error {
	fp, err := os.Open(opt.inputName)
	if err != nil {
		return err
	}
	defer fp.Close()

	src, demuxer, err := openInput(fp, opt)
	if err != nil {
		return err
	}
	scanner := es.NewUnitScanner(src)

	kind := opt.forceKind
	if kind == es.KindUnknown {
		kind = es.DetectVideoKind(scanner)
		if err = scanner.Rewind(es.Offset{}); err != nil {
			return err
		}
	}

	var streamType uint8
	switch kind {
	case es.KindH262:
		streamType = ts.StreamTypeMpeg2Video
	case es.KindH264:
		streamType = ts.StreamTypeAvc
	default:
		return fmt.Errorf("esreverse: unexpected type of video data: %s", kind)
	}
	if demuxer != nil && demuxer.Pmt() != nil {
		if e := demuxer.Pmt().FirstVideo(); e != nil {
			streamType = e.StreamType
		}
	}

	sink, tsWriter, esOut, err := openOutput(opt)
	if err != nil {
		return err
	}
	defer sink.Close()

	rw := &reverse.Writer{
		Src:        src,
		Freq:       opt.freq,
		EsOut:      esOut,
		TsWriter:   tsWriter,
		VideoPid:   ts.DefaultPidVideo,
		StreamId:   pes.SidDefaultVideo,
		StreamType: streamType,
		Tsid:       ts.DefaultTsid,
		ProgramNum: ts.DefaultProgramNumber,
		PmtPid:     ts.DefaultPidPmt,
	}

	// TS输出先把节目信息发出去，正向收集阶段（-server）就要用
	if opt.asTs {
		if !opt.quiet {
			base.Reportf("Using transport stream id %d, PMT PID %#x, program %d = PID %#x, stream type %#x\n",
				ts.DefaultTsid, ts.DefaultPidPmt, ts.DefaultProgramNumber, ts.DefaultPidVideo, streamType)
		}
		if err = rw.WriteProgramData(); err != nil {
			return err
		}
	}

	if !opt.quiet {
		base.Reportf("Scanning forwards\n")
	}

	switch kind {
	case es.KindH262:
		return reverseH262(scanner, rw, opt)
	default:
		return reverseH264(scanner, rw, opt)
	}
}

// 输入三种形态：裸ES文件、TS、PS；后两种经PES抽取变成ES视图
func openInput(fp *os.File, opt *options) (es.ByteSource, *pes.Demuxer, error) {
	if !opt.usePes {
		return es.NewFileSource(fp), nil, nil
	}

	var first [1]byte
	if _, err := io.ReadFull(fp, first[:]); err != nil {
		return nil, nil, err
	}
	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}

	if first[0] == 0x47 {
		demuxer := pes.NewDemuxer(ts.NewPacketReader(fp), func(option *pes.DemuxerOption) {
			option.VideoOnly = true
		})
		return es.NewPesSource(demuxer), demuxer, nil
	}
	return es.NewPesSource(pes.NewPsReader(fp)), nil, nil
}

func openOutput(opt *options) (sink io.WriteCloser, tsWriter *ts.Writer, esOut io.Writer, err error) {
	switch {
	case opt.useStdout:
		sink = ts.NewStdoutSink()
	case opt.host != "":
		sink, err = ts.NewTcpSink(opt.host)
	default:
		sink, err = ts.NewFileSink(opt.outputName)
		if err == nil && !opt.quiet {
			base.Reportf("Writing to   %s\n", opt.outputName)
		}
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if opt.asTs {
		if !opt.quiet {
			base.Reportf("Writing as Transport Stream\n")
		}
		return sink, ts.NewWriter(sink), nil, nil
	}
	return sink, nil, sink, nil
}

func reverseH262(scanner *es.UnitScanner, rw *reverse.Writer, opt *options) error {
	ctx := h262.NewContext(scanner)
	data := reverse.NewData(false)
	ctx.Reverse = data
	rw.Data = data

	err := collectH262(ctx, rw, opt)
	if err != nil && err != io.EOF && err != es.ErrShortUnit {
		if data.Length() == 0 {
			return err
		}
		base.Reportf("!!! Collected %d pictures and sequence headers, continuing to reverse\n", data.Length())
	}

	if !opt.quiet {
		base.Reportf("Outputting in reverse order\n")
	}
	if err = rw.OutputInReverse(); err != nil {
		return err
	}
	printSummary("Pictures", data, opt)
	return nil
}

func collectH262(ctx *h262.Context, rw *reverse.Writer, opt *options) error {
	frames := 0
	for {
		pic, err := ctx.NextFrame()
		if err != nil {
			return err
		}
		if opt.useServer && pic.IsPicture {
			// -server：一边收集一边把正向流转发出去
			if err = forwardFrame(rw, pic.Data()); err != nil {
				return err
			}
		}
		if pic.IsPicture {
			frames++
			if opt.max > 0 && frames >= opt.max {
				return io.EOF
			}
		}
	}
}

func reverseH264(scanner *es.UnitScanner, rw *reverse.Writer, opt *options) error {
	ctx := avc.NewContext(scanner)
	data := reverse.NewData(true)
	ctx.Reverse = data
	rw.Data = data

	err := collectH264(ctx, rw, opt)
	if err != nil && err != io.EOF {
		if data.Length() == 0 {
			return err
		}
		base.Reportf("!!! Collected %d access units, continuing to reverse\n", data.Length())
	}

	// 倒放数据之前先把参数集发一遍
	if !opt.quiet {
		base.Reportf("Preparing to output reverse data\n")
	}
	if err = rw.WriteParamSets(ctx.SpsRecords); err != nil {
		return err
	}
	if err = rw.WriteParamSets(ctx.PpsRecords); err != nil {
		return err
	}

	if !opt.quiet {
		base.Reportf("Outputting in reverse order\n")
	}
	if err = rw.OutputInReverse(); err != nil {
		return err
	}
	printSummary("Access units", data, opt)
	return nil
}

func collectH264(ctx *avc.Context, rw *reverse.Writer, opt *options) error {
	frames := 0
	for {
		au, err := ctx.NextAccessUnit()
		if err != nil {
			return err
		}
		if opt.useServer {
			if err = forwardFrame(rw, au.Data()); err != nil {
				return err
			}
		}
		frames++
		if opt.max > 0 && frames >= opt.max {
			return io.EOF
		}
	}
}

// -server模式下正向转发一帧
func forwardFrame(rw *reverse.Writer, data []byte) error {
	if rw.TsWriter == nil {
		return nil
	}
	return rw.TsWriter.WriteFrame(&ts.Frame{
		Pid: rw.VideoPid,
		Sid: rw.StreamId,
		Raw: data,
	})
}

func printSummary(what string, data *reverse.Data, opt *options) {
	if opt.quiet || data.FirstWritten < 0 {
		return
	}
	finalIndex := data.Entries[data.FirstWritten].Index
	if finalIndex == 0 {
		return
	}
	base.Reportf("\nSummary\n=======\n")
	base.Reportf("              Considered       Used            Written\n")
	base.Reportf("%-12s  %10d %10d (%4.1f%%) %10d (%4.1f%%)\n", what, finalIndex,
		data.PicturesKept, 100*float64(data.PicturesKept)/float64(finalIndex),
		data.PicturesWritten, 100*float64(data.PicturesWritten)/float64(finalIndex))
	if opt.freq != 0 {
		base.Reportf("Target (%s)  . %10d (%4.1f%%) at requested frequency %d\n",
			what, finalIndex/uint32(opt.freq), 100.0/float64(opt.freq), opt.freq)
	}
}

func parseFlag() *options {
	opt := &options{}

	flag.BoolVar(&opt.verbose, "verbose", false, "output additional (debugging) messages")
	flag.BoolVar(&opt.verbose, "v", false, "same as -verbose")
	flag.BoolVar(&opt.quiet, "quiet", false, "only output error messages")
	flag.BoolVar(&opt.quiet, "q", false, "same as -quiet")
	errTo := flag.String("err", "stdout", "write error messages to 'stdout' or 'stderr'")
	useStdout := flag.Bool("stdout", false, "write output to stdout instead of a named file; forces -quiet and -err stderr")
	host := flag.String("host", "", "write output over TCP to HOST or HOST:PORT (default port 88); implies -tsout")
	flag.IntVar(&opt.max, "max", 0, "maximum number of frames to read")
	flag.IntVar(&opt.max, "m", 0, "same as -max")
	flag.IntVar(&opt.freq, "freq", 8, "frequency of frames to try to keep when reversing")
	tsout := flag.Bool("tsout", false, "output H.222 Transport Stream")
	usePes := flag.Bool("pes", false, "the input file is TS or PS, read via the PES->ES reading mechanisms")
	usePesAlias := flag.Bool("ts", false, "same as -pes")
	server := flag.Bool("server", false, "also output normal forward video while collecting; implies -pes and -tsout")
	h264 := flag.Bool("h264", false, "force the input to be treated as MPEG-4/AVC")
	avcAlias := flag.Bool("avc", false, "same as -h264")
	h262Flag := flag.Bool("h262", false, "force the input to be treated as MPEG-2")

	flag.Parse()

	switch *errTo {
	case "stdout":
		base.RedirectReportStdout()
	case "stderr":
		base.RedirectReportStderr()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "### esreverse: unrecognised option '%s' to -err (not 'stdout' or 'stderr')\n", *errTo)
		os.Exit(1)
	}

	opt.useStdout = *useStdout
	if opt.useStdout {
		// 数据占了stdout，报告必须让开
		opt.quiet = true
		opt.verbose = false
		base.RedirectReportStderr()
	}

	if *host != "" {
		addr, err := base.ParseHostPort(*host, base.DefaultTcpPort)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "### esreverse: bad -host value '%s'\n", *host)
			os.Exit(1)
		}
		opt.host = addr
		opt.asTs = true
	}

	opt.asTs = opt.asTs || *tsout
	opt.usePes = *usePes || *usePesAlias
	opt.useServer = *server
	if opt.useServer {
		opt.usePes = true
		opt.asTs = true
	}

	switch {
	case *h264 || *avcAlias:
		opt.forceKind = es.KindH264
	case *h262Flag:
		opt.forceKind = es.KindH262
	}

	args := flag.Args()
	if len(args) < 1 {
		_, _ = fmt.Fprintf(os.Stderr, "### esreverse: no input file specified\n")
		flag.Usage()
		os.Exit(1)
	}
	opt.inputName = args[0]
	if len(args) > 1 {
		opt.outputName = args[1]
	}
	if opt.outputName == "" && !opt.useStdout && opt.host == "" {
		_, _ = fmt.Fprintf(os.Stderr, "### esreverse: no output file specified\n")
		flag.Usage()
		os.Exit(1)
	}
	return opt
}
