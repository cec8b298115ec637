// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// tsprobe 用go-astits和本仓库的demuxer各解一遍TS，把两边看到的
// PAT/PMT/PES打出来对照，验证自家解复用器的结果
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"

	astits "github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/base"
	"github.com/q191201771/tstoolbox/pkg/pes"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename := parseFlag()

	base.Reportf("--- go-astits ---\n")
	probeWithAstits(filename)

	base.Reportf("--- tstoolbox ---\n")
	probeWithToolbox(filename)
}

func probeWithAstits(filename string) {
	fp, err := os.Open(filename)
	nazalog.Assert(nil, err)
	defer fp.Close()

	demuxer := astits.NewDemuxer(context.Background(), bufio.NewReader(fp))
	pesCount := make(map[uint16]int)
	for {
		d, err := demuxer.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets {
				break
			}
			nazalog.Errorf("astits demux failed. err=%+v", err)
			break
		}
		if d.PAT != nil {
			for _, p := range d.PAT.Programs {
				base.Reportf("PAT: program %d -> PMT PID %#04x\n", p.ProgramNumber, p.ProgramMapID)
			}
		}
		if d.PMT != nil {
			base.Reportf("PMT: program %d, PCR PID %#04x\n", d.PMT.ProgramNumber, d.PMT.PCRPID)
			for _, es := range d.PMT.ElementaryStreams {
				base.Reportf("  PID %#04x: stream type %#02x\n", es.ElementaryPID, uint8(es.StreamType))
			}
		}
		if d.PES != nil {
			pesCount[d.FirstPacket.Header.PID]++
		}
	}
	for pid, n := range pesCount {
		base.Reportf("PID %#04x: %d PES packets\n", pid, n)
	}
}

func probeWithToolbox(filename string) {
	fp, err := os.Open(filename)
	nazalog.Assert(nil, err)
	defer fp.Close()

	demuxer := pes.NewDemuxer(ts.NewPacketReader(fp))
	pesCount := make(map[uint16]int)
	for {
		r, err := demuxer.NextData()
		if err != nil {
			if err == io.EOF {
				break
			}
			nazalog.Errorf("demux failed. err=%+v", err)
			break
		}
		switch {
		case r.Pat != nil:
			for _, p := range r.Pat.Ppes {
				base.Reportf("PAT: program %d -> PMT PID %#04x\n", p.Pn, p.PmPid)
			}
		case r.Pmt != nil:
			base.Reportf("PMT: program %d, PCR PID %#04x\n", r.Pmt.Pn, r.Pmt.PcrPid)
			for _, e := range r.Pmt.ProgramElements {
				base.Reportf("  PID %#04x: stream type %#02x (%s)\n",
					e.Pid, e.StreamType, ts.StreamTypeName(e.StreamType, e.EsInfo))
			}
		case r.Pes != nil:
			pesCount[r.Pid]++
		}
	}
	for pid, n := range pesCount {
		base.Reportf("PID %#04x: %d PES packets\n", pid, n)
	}
}

func parseFlag() string {
	i := flag.String("i", "", "specify ts file")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		os.Exit(1)
	}
	return *i
}
