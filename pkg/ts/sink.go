// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ts

import (
	"io"
	"net"
	"os"

	"github.com/q191201771/naza/pkg/connection"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 输出端，file、stdout、tcp三选一，统一成io.WriteCloser

func NewFileSink(filename string) (io.WriteCloser, error) {
	return os.Create(filename)
}

func NewStdoutSink() io.WriteCloser {
	return nopCloser{os.Stdout}
}

// NewTcpSink 连上就往外怼，对端读不动也不等
func NewTcpSink(addr string) (io.WriteCloser, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	nazalog.Infof("ts sink connected. addr=%s", addr)
	c := connection.New(conn, func(option *connection.Option) {
		option.WriteChanFullBehavior = connection.WriteChanFullBehaviorReturnError
	})
	// 写队列攒起来异步发，发不过来就丢，别拖住读取侧
	c.ModWriteChanSize(1024)
	return c, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
