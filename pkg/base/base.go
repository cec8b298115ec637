// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/tstoolbox
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package base 各工具共用的小件：报告输出重定向、host:port解析、版本信息
package base

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

const Version = "v0.2.0"

const DefaultTcpPort = 88

// 工具的报告类输出（进度、统计、清单）走这里，跟nazalog的日志分开；
// -stdout输出数据时必须把报告挪去stderr，不能脏了数据流
var reportOut *os.File = os.Stdout

func RedirectReportStderr() {
	reportOut = os.Stderr
}

func RedirectReportStdout() {
	reportOut = os.Stdout
}

func Reportf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(reportOut, format, a...)
}

// ParseHostPort "host"或"host:port"，没写端口用默认的
func ParseHostPort(v string, defaultPort int) (string, error) {
	host, port, err := net.SplitHostPort(v)
	if err != nil {
		// 没带端口
		return net.JoinHostPort(v, strconv.Itoa(defaultPort)), nil
	}
	if _, err = strconv.Atoi(port); err != nil {
		return "", err
	}
	return net.JoinHostPort(host, port), nil
}
