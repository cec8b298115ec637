// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// srtsend 把一个TS文件（比如esreverse的产物）经SRT发给对端
package main

import (
	"flag"
	"io"
	"os"

	"github.com/haivision/srtgo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/tstoolbox/pkg/ts"
)

// 一个SRT payload装7个TS包
const chunkSize = 7 * ts.PacketSize

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	filename, host, port, streamid := parseFlag()

	fp, err := os.Open(filename)
	nazalog.Assert(nil, err)
	defer fp.Close()

	options := map[string]string{
		"transtype": "live",
	}
	if streamid != "" {
		options["streamid"] = streamid
	}
	sck := srtgo.NewSrtSocket(host, uint16(port), options)
	defer sck.Close()

	err = sck.Connect()
	nazalog.Assert(nil, err)
	nazalog.Infof("srt connected. host=%s, port=%d", host, port)

	buf := make([]byte, chunkSize)
	var sent int64
	for {
		n, err := io.ReadFull(fp, buf)
		if n > 0 {
			if _, werr := sck.Write(buf[:n]); werr != nil {
				nazalog.Errorf("srt write failed. err=%+v", werr)
				os.Exit(1)
			}
			sent += int64(n)
		}
		if err != nil {
			break
		}
	}
	nazalog.Infof("done. sent=%d bytes", sent)
}

func parseFlag() (string, string, int, string) {
	i := flag.String("i", "", "specify ts file")
	host := flag.String("host", "127.0.0.1", "srt peer host")
	port := flag.Int("port", 6001, "srt peer port")
	streamid := flag.String("streamid", "", "srt streamid")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		os.Exit(1)
	}
	return *i, *host, *port, *streamid
}
