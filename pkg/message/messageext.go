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

package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

const (
	MagicCodeV1 int32 = -626843481
	MagicCodeV2 int32 = -626843477

	SysFlagCompressed     int32 = 0x1
	SysFlagMultiTags      int32 = 0x2
	SysFlagBornHostV6     int32 = 0x1 << 4
	SysFlagStoreHostV6    int32 = 0x1 << 5
	SysFlagTransactionAll int32 = 0x3 << 2
)

// MessageExt is a message as stored and returned by a broker.
type MessageExt struct {
	Message
	MsgId                     string
	OffsetMsgId               string
	StoreSize                 int32
	QueueId                   int32
	QueueOffset               int64
	SysFlag                   int32
	BornTimestamp             int64
	BornHost                  string
	StoreTimestamp            int64
	StoreHost                 string
	CommitLogOffset           int64
	BodyCRC                   int32
	ReconsumeTimes            int32
	PreparedTransactionOffset int64
}

func (m *MessageExt) String() string {
	return fmt.Sprintf("[MsgId=%s, OffsetMsgId=%s, QueueId=%d, StoreSize=%d, QueueOffset=%d, SysFlag=%d, "+
		"BornTimestamp=%d, BornHost=%s, StoreTimestamp=%d, StoreHost=%s, CommitLogOffset=%d, BodyCRC=%d, "+
		"ReconsumeTimes=%d, Message=%s]", m.MsgId, m.OffsetMsgId, m.QueueId, m.StoreSize, m.QueueOffset,
		m.SysFlag, m.BornTimestamp, m.BornHost, m.StoreTimestamp, m.StoreHost, m.CommitLogOffset,
		m.BodyCRC, m.ReconsumeTimes, m.Message.String())
}

type storeReader struct {
	buf []byte
	pos int
	err error
}

func (r *storeReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("need %d bytes at offset %d, have %d", n, r.pos, len(r.buf)-r.pos)
		return false
	}
	return true
}

func (r *storeReader) int8() int {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return int(v)
}

func (r *storeReader) int16() int {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return int(v)
}

func (r *storeReader) int32() int32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return int32(v)
}

func (r *storeReader) int64() int64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return int64(v)
}

func (r *storeReader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *storeReader) host(v6 bool) (ip []byte, port int32) {
	ipLen := 4
	if v6 {
		ipLen = 16
	}
	ip = r.bytes(ipLen)
	port = r.int32()
	return
}

// DecodeMessage parses every message in a pull response body.
func DecodeMessage(data []byte) ([]*MessageExt, error) {
	r := &storeReader{buf: data}
	var msgs []*MessageExt
	for r.pos < len(data) {
		start := r.pos
		m := &MessageExt{}
		m.StoreSize = r.int32()
		magic := r.int32()
		if r.err == nil && magic != MagicCodeV1 && magic != MagicCodeV2 {
			return nil, errors.NewFramingError(fmt.Sprintf("bad message magic code %d at offset %d", magic, start), nil)
		}
		m.BodyCRC = r.int32()
		m.QueueId = r.int32()
		m.Flag = r.int32()
		m.QueueOffset = r.int64()
		m.CommitLogOffset = r.int64()
		m.SysFlag = r.int32()
		m.BornTimestamp = r.int64()
		bornIP, bornPort := r.host(m.SysFlag&SysFlagBornHostV6 != 0)
		m.StoreTimestamp = r.int64()
		storeIP, storePort := r.host(m.SysFlag&SysFlagStoreHostV6 != 0)
		m.ReconsumeTimes = r.int32()
		m.PreparedTransactionOffset = r.int64()

		body := r.bytes(int(r.int32()))
		var topicLen int
		if magic == MagicCodeV2 {
			topicLen = r.int16()
		} else {
			topicLen = r.int8()
		}
		m.Topic = string(r.bytes(topicLen))
		props := r.bytes(r.int16())
		if r.err != nil {
			return nil, errors.NewFramingError("decode message", r.err)
		}
		if m.StoreSize > 0 && int(m.StoreSize) != r.pos-start {
			r.pos = start + int(m.StoreSize)
			if r.pos > len(data) {
				return nil, errors.NewFramingError(fmt.Sprintf("store size %d overruns buffer", m.StoreSize), nil)
			}
		}

		if len(body) > 0 {
			if m.SysFlag&SysFlagCompressed != 0 {
				plain, err := DecompressBody(body)
				if err != nil {
					return nil, errors.NewFramingError("decompress message body", err)
				}
				m.Body = plain
			} else {
				m.Body = append([]byte(nil), body...)
			}
		}

		m.BornHost = hostString(bornIP, bornPort)
		m.StoreHost = hostString(storeIP, storePort)
		m.OffsetMsgId = CreateOffsetMsgId(storeIP, storePort, m.CommitLogOffset)
		m.properties = UnmarshalProperties(props)
		m.MsgId = m.GetProperty(PropertyUniqueKey)
		if m.MsgId == "" {
			m.MsgId = m.OffsetMsgId
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// EncodeMessage writes m in the broker's store layout using the V1 magic
// code. Bodies are written as is; set SysFlagCompressed only on bodies that
// are already compressed.
func EncodeMessage(m *MessageExt) []byte {
	props := []byte(MarshalProperties(m.properties))
	bornIP, bornPort := parseHost(m.BornHost)
	storeIP, storePort := parseHost(m.StoreHost)

	var buf bytes.Buffer
	w := func(v interface{}) { binary.Write(&buf, binary.BigEndian, v) }

	w(int32(0))
	w(MagicCodeV1)
	w(m.BodyCRC)
	w(m.QueueId)
	w(m.Flag)
	w(m.QueueOffset)
	w(m.CommitLogOffset)
	w(m.SysFlag &^ (SysFlagBornHostV6 | SysFlagStoreHostV6))
	w(m.BornTimestamp)
	buf.Write(bornIP)
	w(bornPort)
	w(m.StoreTimestamp)
	buf.Write(storeIP)
	w(storePort)
	w(m.ReconsumeTimes)
	w(m.PreparedTransactionOffset)
	w(int32(len(m.Body)))
	buf.Write(m.Body)
	buf.WriteByte(byte(len(m.Topic)))
	buf.WriteString(m.Topic)
	w(int16(len(props)))
	buf.Write(props)

	out := buf.Bytes()
	binary.BigEndian.PutUint32(out, uint32(len(out)))
	return out
}

// CreateOffsetMsgId encodes the store host and commit log offset as 32 hex
// digits.
func CreateOffsetMsgId(ip []byte, port int32, offset int64) string {
	b := make([]byte, 0, len(ip)+12)
	b = append(b, ip...)
	b = binary.BigEndian.AppendUint32(b, uint32(port))
	b = binary.BigEndian.AppendUint64(b, uint64(offset))
	return util.ToHexString(b)
}

func hostString(ip []byte, port int32) string {
	if len(ip) == 0 {
		return ""
	}
	return net.JoinHostPort(net.IP(ip).String(), strconv.Itoa(int(port)))
}

func parseHost(addr string) ([]byte, int32) {
	ip4 := make([]byte, 4)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return ip4, 0
	}
	port, _ := strconv.Atoi(portStr)
	if ip := net.ParseIP(host).To4(); ip != nil {
		copy(ip4, ip)
	}
	return ip4, int32(port)
}
