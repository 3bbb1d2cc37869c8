//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package io

import (
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

var (
	DefaultOutboundConfig = OutboundConfig{
		ConnectTimeout: util.Duration{Duration: 1 * time.Second},
		WriteTimeout:   util.Duration{Duration: 1 * time.Second},
		RequestTimeout: util.Duration{Duration: 3 * time.Second},
		ReqChanBufSize: 1024,
		MaxFrameSize:   proto.DefaultMaxFrameSize,
		IOBufSize:      64 * 1024,
		ReaderChanSize: 16,
	}
)

type OutboundConfig struct {
	ConnectTimeout util.Duration
	WriteTimeout   util.Duration
	// RequestTimeout applies when the caller's context has no deadline.
	RequestTimeout util.Duration
	ReqChanBufSize int
	MaxFrameSize   int
	IOBufSize      int
	ReaderChanSize int
}

func (conf *OutboundConfig) SetDefaultIfNotDefined() (set bool) {
	if conf.ConnectTimeout.Duration == 0 {
		set = true
		conf.ConnectTimeout = DefaultOutboundConfig.ConnectTimeout
	}
	if conf.WriteTimeout.Duration == 0 {
		set = true
		conf.WriteTimeout = DefaultOutboundConfig.WriteTimeout
	}
	if conf.RequestTimeout.Duration == 0 {
		set = true
		conf.RequestTimeout = DefaultOutboundConfig.RequestTimeout
	}
	if conf.ReqChanBufSize == 0 {
		set = true
		conf.ReqChanBufSize = DefaultOutboundConfig.ReqChanBufSize
	}
	if conf.MaxFrameSize == 0 {
		set = true
		conf.MaxFrameSize = DefaultOutboundConfig.MaxFrameSize
	}
	if conf.IOBufSize == 0 {
		set = true
		conf.IOBufSize = DefaultOutboundConfig.IOBufSize
	}
	if conf.ReaderChanSize == 0 {
		set = true
		conf.ReaderChanSize = DefaultOutboundConfig.ReaderChanSize
	}
	return
}
