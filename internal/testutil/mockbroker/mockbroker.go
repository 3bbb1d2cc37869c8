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

/*
Package mockbroker runs an in-process broker that also answers route queries,
so one instance can stand in for both the name server and a broker in tests.

Behavior can be altered per request code with MockInfo: delay a response,
drop it, or answer with a different response code.
*/
package mockbroker

import (
	"bufio"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/route"
)

// MockInfo alters how the broker answers. Code 0 applies to every request
// code. Times limits how many requests the rule applies to; 0 means no limit.
type MockInfo struct {
	Code       proto.RequestCode
	Status     proto.ResponseCode
	Remark     string
	Delay      time.Duration
	NoResponse bool
	Times      int
}

type queueKey struct {
	topic   string
	queueId int32
}

type Broker struct {
	Name string

	ln   net.Listener
	addr string
	wg   sync.WaitGroup

	mtx        sync.Mutex
	conns      map[net.Conn]struct{}
	routes     map[string]*route.TopicRouteData
	mockinfo   []*MockInfo
	received   []*proto.RemotingCommand
	stored     map[queueKey][]*message.MessageExt
	commitLog  int64
	closed     bool
	storeIP    []byte
	storePort  int32
	brokerAddr string
}

// New starts a broker listening on a random local port.
func New(name string) (*Broker, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	b := &Broker{
		Name:   name,
		ln:     ln,
		addr:   ln.Addr().String(),
		conns:  make(map[net.Conn]struct{}),
		routes: make(map[string]*route.TopicRouteData),
		stored: make(map[queueKey][]*message.MessageExt),
	}
	tcp := ln.Addr().(*net.TCPAddr)
	b.storeIP = tcp.IP.To4()
	b.storePort = int32(tcp.Port)
	b.brokerAddr = b.addr

	b.wg.Add(1)
	go b.acceptLoop()
	return b, nil
}

func (b *Broker) Addr() string {
	return b.addr
}

// AddTopic registers a route for topic with queueNums read and write queues
// served by this broker.
func (b *Broker) AddTopic(topic string, queueNums int) {
	b.SetRoute(topic, &route.TopicRouteData{
		QueueDataList: []*route.QueueData{{
			BrokerName:     b.Name,
			ReadQueueNums:  queueNums,
			WriteQueueNums: queueNums,
			Perm:           route.PermRead | route.PermWrite,
		}},
		BrokerDataList: []*route.BrokerData{{
			Cluster:         "DefaultCluster",
			BrokerName:      b.Name,
			BrokerAddresses: map[int64]string{route.MasterId: b.addr},
		}},
	})
}

func (b *Broker) SetRoute(topic string, r *route.TopicRouteData) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.routes[topic] = r
}

func (b *Broker) RemoveRoute(topic string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.routes, topic)
}

func (b *Broker) SetMockInfo(infos ...*MockInfo) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.mockinfo = append(b.mockinfo, infos...)
}

func (b *Broker) ResetMockInfo() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.mockinfo = nil
}

// Received returns the requests seen so far, in arrival order.
func (b *Broker) Received() []*proto.RemotingCommand {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	out := make([]*proto.RemotingCommand, len(b.received))
	copy(out, b.received)
	return out
}

// ReceivedCodes returns the requests with the given code.
func (b *Broker) ReceivedCodes(code proto.RequestCode) []*proto.RemotingCommand {
	var out []*proto.RemotingCommand
	for _, r := range b.Received() {
		if r.Code == int(code) {
			out = append(out, r)
		}
	}
	return out
}

// Stored returns the messages stored in a queue.
func (b *Broker) Stored(topic string, queueId int32) []*message.MessageExt {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	msgs := b.stored[queueKey{topic, queueId}]
	out := make([]*message.MessageExt, len(msgs))
	copy(out, msgs)
	return out
}

// StoredCount returns the number of messages stored for topic.
func (b *Broker) StoredCount(topic string) int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	n := 0
	for k, msgs := range b.stored {
		if k.topic == topic {
			n += len(msgs)
		}
	}
	return n
}

// Put stores a message directly, as if it had been sent.
func (b *Broker) Put(msg *message.Message, queueId int32) *message.MessageExt {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.storeLocked(msg, queueId, 0, time.Now().UnixMilli())
}

func (b *Broker) Close() {
	b.mtx.Lock()
	b.closed = true
	for c := range b.conns {
		c.Close()
	}
	b.mtx.Unlock()
	b.ln.Close()
	b.wg.Wait()
}

func (b *Broker) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.mtx.Lock()
		if b.closed {
			b.mtx.Unlock()
			conn.Close()
			return
		}
		b.conns[conn] = struct{}{}
		b.mtx.Unlock()

		b.wg.Add(1)
		go b.serve(conn)
	}
}

func (b *Broker) serve(conn net.Conn) {
	defer b.wg.Done()
	defer func() {
		b.mtx.Lock()
		delete(b.conns, conn)
		b.mtx.Unlock()
		conn.Close()
	}()

	var wmtx sync.Mutex
	var pending sync.WaitGroup
	defer pending.Wait()

	r := bufio.NewReader(conn)
	for {
		req, err := proto.ReadCommand(r, proto.DefaultMaxFrameSize)
		if err != nil {
			return
		}
		b.mtx.Lock()
		b.received = append(b.received, req)
		info := b.matchLocked(proto.RequestCode(req.Code))
		b.mtx.Unlock()

		pending.Add(1)
		go func() {
			defer pending.Done()
			resp := b.process(req, info)
			if resp == nil {
				return
			}
			wmtx.Lock()
			defer wmtx.Unlock()
			if _, err := resp.WriteTo(conn); err != nil {
				glog.V(2).Infof("mock broker write: %s", err)
			}
		}()
	}
}

func (b *Broker) matchLocked(code proto.RequestCode) *MockInfo {
	for i, m := range b.mockinfo {
		if m.Code != 0 && m.Code != code {
			continue
		}
		info := *m
		if m.Times > 0 {
			m.Times--
			if m.Times == 0 {
				b.mockinfo = append(b.mockinfo[:i:i], b.mockinfo[i+1:]...)
			}
		}
		return &info
	}
	return nil
}

func (b *Broker) process(req *proto.RemotingCommand, info *MockInfo) *proto.RemotingCommand {
	if info != nil && info.Delay > 0 {
		time.Sleep(info.Delay)
	}
	if info != nil && info.NoResponse {
		glog.V(2).Infof("mock broker drops opaque=%d", req.Opaque)
		return nil
	}
	if info != nil && info.Status != proto.ResponseCodeSuccess && !req.IsOneway() {
		return proto.NewResponseCommand(req, info.Status, info.Remark, nil, nil)
	}
	resp := b.handle(req)
	if req.IsOneway() {
		return nil
	}
	return resp
}

func (b *Broker) handle(req *proto.RemotingCommand) *proto.RemotingCommand {
	switch proto.RequestCode(req.Code) {
	case proto.RequestCodeGetRouteInfoByTopic:
		return b.onGetRoute(req)
	case proto.RequestCodeSendMessage:
		return b.onSend(req)
	case proto.RequestCodePullMessage:
		return b.onPull(req)
	case proto.RequestCodeGetMaxOffset, proto.RequestCodeGetMinOffset:
		return b.onQueryOffset(req)
	case proto.RequestCodeHeartBeat, proto.RequestCodeUnregisterClient:
		return proto.NewResponseCommand(req, proto.ResponseCodeSuccess, "", nil, nil)
	default:
		return proto.NewResponseCommand(req, proto.ResponseCodeRequestCodeNotSupported,
			"request code "+strconv.Itoa(req.Code)+" not supported", nil, nil)
	}
}

func (b *Broker) onGetRoute(req *proto.RemotingCommand) *proto.RemotingCommand {
	topic, _ := req.GetExtField(proto.FieldTopic)
	b.mtx.Lock()
	r, ok := b.routes[topic]
	b.mtx.Unlock()
	if !ok {
		return proto.NewResponseCommand(req, proto.ResponseCodeTopicNotExist,
			"No topic route info in name server for the topic: "+topic, nil, nil)
	}
	body, err := r.Encode()
	if err != nil {
		return proto.NewResponseCommand(req, proto.ResponseCodeSystemError, err.Error(), nil, nil)
	}
	return proto.NewResponseCommand(req, proto.ResponseCodeSuccess, "", nil, body)
}

func (b *Broker) onSend(req *proto.RemotingCommand) *proto.RemotingCommand {
	h, err := proto.DecodeSendMessageRequestHeader(req.ExtFields)
	if err != nil {
		return proto.NewResponseCommand(req, proto.ResponseCodeMessageIllegal, err.Error(), nil, nil)
	}
	msg := message.NewMessage(h.Topic, req.Body)
	msg.Flag = h.Flag
	msg.UnmarshalProperties([]byte(h.Properties))

	b.mtx.Lock()
	ext := b.storeLocked(msg, h.QueueId, h.SysFlag, h.BornTimestamp)
	b.mtx.Unlock()

	resp := &proto.SendMessageResponseHeader{
		MsgId:       ext.OffsetMsgId,
		QueueId:     ext.QueueId,
		QueueOffset: ext.QueueOffset,
		RegionId:    "DefaultRegion",
	}
	return proto.NewResponseCommand(req, proto.ResponseCodeSuccess, "", resp.Encode(), nil)
}

func (b *Broker) storeLocked(msg *message.Message, queueId int32, sysFlag int32, born int64) *message.MessageExt {
	key := queueKey{msg.Topic, queueId}
	ext := &message.MessageExt{
		Message:         *msg,
		QueueId:         queueId,
		QueueOffset:     int64(len(b.stored[key])),
		SysFlag:         sysFlag,
		BornTimestamp:   born,
		BornHost:        "127.0.0.1:0",
		StoreTimestamp:  time.Now().UnixMilli(),
		StoreHost:       b.brokerAddr,
		CommitLogOffset: b.commitLog,
	}
	ext.OffsetMsgId = message.CreateOffsetMsgId(b.storeIP, b.storePort, ext.CommitLogOffset)
	b.commitLog += int64(len(msg.Body)) + 128
	b.stored[key] = append(b.stored[key], ext)
	return ext
}

func (b *Broker) onPull(req *proto.RemotingCommand) *proto.RemotingCommand {
	h, err := proto.DecodePullMessageRequestHeader(req.ExtFields)
	if err != nil {
		return proto.NewResponseCommand(req, proto.ResponseCodeMessageIllegal, err.Error(), nil, nil)
	}
	b.mtx.Lock()
	msgs := b.stored[queueKey{h.Topic, h.QueueId}]
	maxOffset := int64(len(msgs))
	var found []*message.MessageExt
	if h.QueueOffset >= 0 && h.QueueOffset < maxOffset {
		end := h.QueueOffset + int64(h.MaxMsgNums)
		if h.MaxMsgNums <= 0 || end > maxOffset {
			end = maxOffset
		}
		found = append(found, msgs[h.QueueOffset:end]...)
	}
	b.mtx.Unlock()

	resp := &proto.PullMessageResponseHeader{MinOffset: 0, MaxOffset: maxOffset}
	switch {
	case h.QueueOffset < 0 || h.QueueOffset > maxOffset:
		resp.NextBeginOffset = maxOffset
		return proto.NewResponseCommand(req, proto.ResponseCodePullOffsetMoved, "offset out of range", resp.Encode(), nil)
	case h.QueueOffset == maxOffset:
		resp.NextBeginOffset = maxOffset
		return proto.NewResponseCommand(req, proto.ResponseCodePullNotFound, "no new message", resp.Encode(), nil)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].QueueOffset < found[j].QueueOffset })
	var body []byte
	for _, m := range found {
		body = append(body, message.EncodeMessage(m)...)
	}
	resp.NextBeginOffset = h.QueueOffset + int64(len(found))
	return proto.NewResponseCommand(req, proto.ResponseCodeSuccess, "", resp.Encode(), body)
}

func (b *Broker) onQueryOffset(req *proto.RemotingCommand) *proto.RemotingCommand {
	h, err := proto.DecodeQueueOffsetRequestHeader(req.ExtFields)
	if err != nil {
		return proto.NewResponseCommand(req, proto.ResponseCodeSystemError, err.Error(), nil, nil)
	}
	var offset int64
	if proto.RequestCode(req.Code) == proto.RequestCodeGetMaxOffset {
		b.mtx.Lock()
		offset = int64(len(b.stored[queueKey{h.Topic, h.QueueId}]))
		b.mtx.Unlock()
	}
	return proto.NewResponseCommand(req, proto.ResponseCodeSuccess, "",
		map[string]string{proto.FieldOffset: strconv.FormatInt(offset, 10)}, nil)
}
