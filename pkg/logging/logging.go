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

package logging

import (
	"bytes"
	"flag"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

const (
	levelError   = "1"
	levelWarning = "2"
	levelInfo    = "3"
	levelDebug   = "4"
	levelVerbose = "5"
)

var (
	LOG_DEBUG   glog.Verbose = false
	LOG_VERBOSE glog.Verbose = false
)

// InitLogging routes glog to stderr and maps level onto glog's -v flag.
// Accepted levels are error, warning, info, debug and verbose; anything else is info.
func InitLogging(level string, appName string) {
	if f := flag.Lookup("logtostderr"); f != nil {
		f.Value.Set("true")
	}
	var v string
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		v = levelError
	case "warning", "warn":
		v = levelWarning
	case "debug":
		v = levelDebug
	case "verbose":
		v = levelVerbose
	default:
		v = levelInfo
	}
	if f := flag.Lookup("v"); f != nil {
		f.Value.Set(v)
	}
	LOG_DEBUG = glog.V(4)
	LOG_VERBOSE = glog.V(5)
	glog.Infof("logging initialized app=%s level=%s", appName, level)
}

type KeyValueBuffer struct {
	bytes.Buffer
	delimiter     byte
	pairDelimiter byte
}

func NewKVBufferForLog() *KeyValueBuffer {
	return &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: ',',
	}
}

// NewKVBuffer is the URL-query flavor, used for metric attribute dumps.
func NewKVBuffer() *KeyValueBuffer {
	return &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: '&',
	}
}

var (
	logDataKeyTopic    = []byte("topic")
	logDataKeyGroup    = []byte("group")
	logDataKeyCode     = []byte("code")
	logDataKeyOpaque   = []byte("opaque")
	logDataKeyRemark   = []byte("remark")
	logDataKeyAddr     = []byte("raddr")
	logDataKeyBroker   = []byte("broker")
	logDataKeyQueueId  = []byte("qid")
	logDataKeyMsgId    = []byte("msgid")
	logDataKeyTryNo    = []byte("try_no")
	logDataKeyBodyLen  = []byte("len")
	logDataKeyResolver = []byte("resolver")
)

func (b *KeyValueBuffer) AddBytes(key []byte, value []byte) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.Write(value)
	return b
}

func (b *KeyValueBuffer) Add(key []byte, value string) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.WriteString(value)
	return b
}

func (b *KeyValueBuffer) AddInt(key []byte, value int) *KeyValueBuffer {
	return b.Add(key, strconv.Itoa(value))
}

func (b *KeyValueBuffer) AddTopic(topic string) *KeyValueBuffer {
	return b.Add(logDataKeyTopic, topic)
}

func (b *KeyValueBuffer) AddGroup(group string) *KeyValueBuffer {
	return b.Add(logDataKeyGroup, group)
}

func (b *KeyValueBuffer) AddCode(code int) *KeyValueBuffer {
	return b.AddInt(logDataKeyCode, code)
}

func (b *KeyValueBuffer) AddOpaque(opaque int32) *KeyValueBuffer {
	return b.Add(logDataKeyOpaque, strconv.FormatInt(int64(opaque), 10))
}

func (b *KeyValueBuffer) AddRemark(remark string) *KeyValueBuffer {
	if len(remark) == 0 {
		return b
	}
	return b.Add(logDataKeyRemark, remark)
}

func (b *KeyValueBuffer) AddAddr(addr string) *KeyValueBuffer {
	return b.Add(logDataKeyAddr, addr)
}

func (b *KeyValueBuffer) AddQueue(brokerName string, queueId int) *KeyValueBuffer {
	b.Add(logDataKeyBroker, brokerName)
	return b.AddInt(logDataKeyQueueId, queueId)
}

func (b *KeyValueBuffer) AddMsgId(id string) *KeyValueBuffer {
	return b.Add(logDataKeyMsgId, id)
}

func (b *KeyValueBuffer) AddTryNo(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyTryNo, n)
}

func (b *KeyValueBuffer) AddBodyLen(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyBodyLen, n)
}

func (b *KeyValueBuffer) AddResolver(desc string) *KeyValueBuffer {
	return b.Add(logDataKeyResolver, desc)
}
