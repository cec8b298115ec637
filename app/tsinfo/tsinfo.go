// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// tsinfo 报告一个TS文件里的PAT/PMT（含PCR PID）和各PID的PES时间戳，不报告PCR值
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/base"
	"github.com/q191201771/tstoolbox/pkg/pes"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

type options struct {
	verbose bool
	quiet   bool
	max     int64
	stdin   bool

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

	if err := run(opt); err != nil && err != io.EOF {
		nazalog.Errorf("tsinfo failed. err=%+v", err)
		os.Exit(1)
	}
}

func run(opt *options) error {
	var input io.Reader
	if opt.stdin {
		input = os.Stdin
	} else {
		fp, err := os.Open(opt.inputName)
		if err != nil {
			return err
		}
		defer fp.Close()
		input = fp
	}

	pr := ts.NewPacketReader(input)
	demuxer := pes.NewDemuxer(pr, func(option *pes.DemuxerOption) {
		option.MaxPackets = opt.max
	})

	pesCount := make(map[uint16]int)

	for {
		r, err := demuxer.NextData()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		switch {
		case r.Pat != nil:
			reportPat(r.Pat)
		case r.Pmt != nil:
			reportPmt(r.Pmt)
		case r.Pes != nil:
			pesCount[r.Pid]++
			if opt.verbose || pesCount[r.Pid] <= 5 {
				reportPes(r.Pid, r.Pes)
			}
		}
	}

	base.Reportf("Read %d TS packets\n", pr.Count())
	for pid, n := range pesCount {
		base.Reportf("PID %#04x: %d PES packets\n", pid, n)
	}
	return nil
}

func reportPat(pat *ts.Pat) {
	base.Reportf("PAT: transport stream id %d\n", pat.Tsi)
	for _, ppe := range pat.Ppes {
		if ppe.Pn == 0 {
			base.Reportf("  network PID %#04x\n", ppe.PmPid)
		} else {
			base.Reportf("  program %d -> PMT PID %#04x\n", ppe.Pn, ppe.PmPid)
		}
	}
}

func reportPmt(pmt *ts.Pmt) {
	base.Reportf("PMT: program %d, PCR PID %#04x\n", pmt.Pn, pmt.PcrPid)
	for _, e := range pmt.ProgramElements {
		base.Reportf("  PID %#04x: stream type %#02x (%s)\n",
			e.Pid, e.StreamType, ts.StreamTypeName(e.StreamType, e.EsInfo))
	}
}

func reportPes(pid uint16, pkt *pes.Packet) {
	line := fmt.Sprintf("PID %#04x: PES stream id %#02x, %d bytes", pid, pkt.Sid, len(pkt.Payload))
	if pkt.HasPts() {
		line += fmt.Sprintf(", PTS %d", pkt.Pts)
	}
	if pkt.HasDts() {
		line += fmt.Sprintf(", DTS %d", pkt.Dts)
	}
	base.Reportf("%s\n", line)
}

func parseFlag() *options {
	opt := &options{}
	flag.BoolVar(&opt.verbose, "verbose", false, "report every PES packet")
	flag.BoolVar(&opt.verbose, "v", false, "same as -verbose")
	flag.BoolVar(&opt.quiet, "quiet", false, "only output error messages")
	flag.BoolVar(&opt.quiet, "q", false, "same as -quiet")
	flag.BoolVar(&opt.stdin, "stdin", false, "read from standard input instead of a file")
	max := flag.Int("max", 0, "maximum number of TS packets to read")
	errTo := flag.String("err", "stdout", "write error messages to 'stdout' or 'stderr'")
	flag.Parse()

	switch *errTo {
	case "stdout":
		base.RedirectReportStdout()
	case "stderr":
		base.RedirectReportStderr()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "### tsinfo: unrecognised option '%s' to -err\n", *errTo)
		os.Exit(1)
	}

	opt.max = int64(*max)
	args := flag.Args()
	if len(args) < 1 && !opt.stdin {
		_, _ = fmt.Fprintf(os.Stderr, "### tsinfo: no input file specified\n")
		flag.Usage()
		os.Exit(1)
	}
	if len(args) > 0 {
		opt.inputName = args[0]
	}
	return opt
}
