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

package producer

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/kaixinbaba/rocketmq-go/internal/testutil/mockbroker"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/resolver"
	"github.com/kaixinbaba/rocketmq-go/pkg/route"
	"github.com/kaixinbaba/rocketmq-go/pkg/selector"
)

type failingResolver struct{}

func (failingResolver) Resolve(ctx context.Context) ([]string, error) {
	return nil, errors.NewMalformedError("failing", stderrors.New("empty"))
}

func (failingResolver) Description() string { return "failing" }

func startBroker(t *testing.T, name string) *mockbroker.Broker {
	t.Helper()
	b, err := mockbroker.New(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return b
}

func newTestProducer(t *testing.T, nameServer string, opts ...Option) *Producer {
	t.Helper()
	p, err := New("test-producer", append([]Option{WithNameServer(nameServer)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Shutdown)
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"zeroQueueNums", WithDefaultTopicQueueNums(0), "DefaultTopicQueueNums"},
		{"negativeQueueNums", WithDefaultTopicQueueNums(-1), "DefaultTopicQueueNums"},
		{"zeroTimeout", WithSendMsgTimeout(0), "SendMsgTimeout"},
		{"emptyCreateTopicKey", WithCreateTopicKey(""), "CreateTopicKey"},
		{"negativeRetry", WithRetryTimes(-1), "RetryTimes"},
		{"zeroMaxSize", WithMaxMessageSize(0), "MaxMessageSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("g", WithNameServer("127.0.0.1:9876"), tt.opt)
			var cfgErr *errors.ConfigurationError
			if p != nil || !stderrors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("got %v", err)
			}
		})
	}
	if _, err := New(""); err == nil {
		t.Error("empty group must fail")
	}
}

func TestDefaults(t *testing.T) {
	b := startBroker(t, "broker-a")
	p := newTestProducer(t, b.Addr())
	o := p.Options()
	if o.SendMsgTimeout != 3*time.Second || o.DefaultTopicQueueNums != 4 || o.CreateTopicKey != "TBW102" ||
		o.RetryTimes != 2 || o.CompressMsgBodyOver != 4096 || o.MaxMessageSize != 4*1024*1024 {
		t.Errorf("unexpected defaults %+v", o)
	}
	if _, ok := o.Selector.(*selector.RoundRobin); !ok {
		t.Errorf("default selector %T", o.Selector)
	}
}

type staticResolver struct {
	addrs []string
}

func (r staticResolver) Resolve(ctx context.Context) ([]string, error) { return r.addrs, nil }

func (staticResolver) Description() string { return "static" }

func TestNewFailsWhenResolveFails(t *testing.T) {
	p, err := New("g", WithResolver(failingResolver{}))
	if p != nil || err == nil {
		t.Fatal("expected construction to fail")
	}
}

func TestNewFailsOnEmptyNameServerList(t *testing.T) {
	tests := []struct {
		name string
		r    resolver.Resolver
	}{
		{"nilList", staticResolver{}},
		{"emptyList", staticResolver{addrs: []string{}}},
		{"passthroughWithoutFallback", resolver.NewPassthroughResolver(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("g", WithResolver(tt.r))
			if p != nil {
				p.Shutdown()
				t.Fatal("producer returned without name servers")
			}
			var rerr *errors.ResolveError
			if !stderrors.As(err, &rerr) || rerr.Kind != errors.ResolveMalformed {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestSend(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 4)
	p := newTestProducer(t, b.Addr())

	for i := 0; i < 4; i++ {
		msg := message.NewMessage("orders", []byte("hello")).WithTag("TagA").WithKeys("order-1")
		result, err := p.Send(context.Background(), msg)
		if err != nil {
			t.Fatal(err)
		}
		if result.Status != SendOK || result.MessageQueue.QueueId != i || result.MessageQueue.BrokerName != "broker-a" {
			t.Errorf("send %d: %s", i, result)
		}
		if result.MsgID == "" || result.MsgID != msg.GetUniqueKey() || len(result.OffsetMsgID) != 32 {
			t.Errorf("send %d ids: %s", i, result)
		}
		if result.RegionID != "DefaultRegion" {
			t.Errorf("region %q", result.RegionID)
		}
	}

	if b.StoredCount("orders") != 4 {
		t.Errorf("stored %d", b.StoredCount("orders"))
	}
	stored := b.Stored("orders", 0)[0]
	if stored.GetTags() != "TagA" || stored.GetKeys() != "order-1" || stored.GetUniqueKey() == "" {
		t.Errorf("stored properties %v", stored.Properties())
	}
	sends := b.ReceivedCodes(proto.RequestCodeSendMessage)
	if group, _ := sends[0].GetExtField(proto.FieldProducerGroup); group != "test-producer" {
		t.Errorf("producer group %q", group)
	}
	if st := p.Stats(); st.NumRequests != 4 || st.NumErrors != 0 {
		t.Errorf("stats %+v", st)
	}
}

func TestSendCompressesLargeBody(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	p := newTestProducer(t, b.Addr(), WithCompressMsgBodyOver(1024))

	body := bytes.Repeat([]byte("compressible "), 1000)
	msg := message.NewMessage("orders", body)
	if _, err := p.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(msg.Body, body) {
		t.Error("caller's body must not change")
	}
	stored := b.Stored("orders", 0)[0]
	if stored.SysFlag&message.SysFlagCompressed == 0 || len(stored.Body) >= len(body) {
		t.Fatalf("body not compressed, sysflag=%d len=%d", stored.SysFlag, len(stored.Body))
	}
	plain, err := message.DecompressBody(stored.Body)
	if err != nil || !bytes.Equal(plain, body) {
		t.Errorf("decompress: %v", err)
	}

	small := message.NewMessage("orders", []byte("small"))
	p.Send(context.Background(), small)
	if s := b.Stored("orders", 0)[1]; s.SysFlag&message.SysFlagCompressed != 0 {
		t.Error("small body must not be compressed")
	}
}

func TestSendUsesCreateTopicKeyRoute(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("TBW102", 8)
	p := newTestProducer(t, b.Addr())

	result, err := p.Send(context.Background(), message.NewMessage("brand-new", []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != SendOK || result.MessageQueue.Topic != "brand-new" {
		t.Errorf("unexpected %s", result)
	}
	p.mtx.RLock()
	info := p.publishInfo["brand-new"]
	p.mtx.RUnlock()
	if len(info.MessageQueues) != 4 {
		t.Errorf("queues capped to default queue nums, got %d", len(info.MessageQueues))
	}
	if topics := p.PublishTopicList(); len(topics) != 1 || topics[0] != "brand-new" {
		t.Errorf("publish topics %v", topics)
	}
	if p.IsPublishTopicNeedUpdate("brand-new") {
		t.Error("fresh route must not need update")
	}
}

func TestSendNoRoute(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.SetRoute("readonly", &route.TopicRouteData{
		QueueDataList:  []*route.QueueData{{BrokerName: "broker-a", ReadQueueNums: 4, WriteQueueNums: 4, Perm: route.PermRead}},
		BrokerDataList: []*route.BrokerData{{BrokerName: "broker-a", BrokerAddresses: map[int64]string{0: b.Addr()}}},
	})
	p := newTestProducer(t, b.Addr())

	_, err := p.Send(context.Background(), message.NewMessage("readonly", []byte("x")))
	if !stderrors.Is(err, errors.ErrNoRoute) {
		t.Errorf("got %v", err)
	}
	_, err = p.Send(context.Background(), message.NewMessage("unknown", []byte("x")))
	var berr *errors.BrokerError
	if !stderrors.As(err, &berr) || berr.Code != int(proto.ResponseCodeTopicNotExist) {
		t.Errorf("got %v", err)
	}
}

func TestSendRetriesOnAnotherBroker(t *testing.T) {
	a := startBroker(t, "broker-a")
	b := startBroker(t, "broker-b")
	a.SetRoute("orders", &route.TopicRouteData{
		QueueDataList: []*route.QueueData{
			{BrokerName: "broker-a", ReadQueueNums: 2, WriteQueueNums: 2, Perm: route.PermRead | route.PermWrite},
			{BrokerName: "broker-b", ReadQueueNums: 2, WriteQueueNums: 2, Perm: route.PermRead | route.PermWrite},
		},
		BrokerDataList: []*route.BrokerData{
			{BrokerName: "broker-a", BrokerAddresses: map[int64]string{0: a.Addr()}},
			{BrokerName: "broker-b", BrokerAddresses: map[int64]string{0: b.Addr()}},
		},
	})
	a.SetMockInfo(&mockbroker.MockInfo{
		Code:   proto.RequestCodeSendMessage,
		Status: proto.ResponseCodeSystemBusy,
		Remark: "busy",
		Times:  1,
	})
	p := newTestProducer(t, a.Addr())

	result, err := p.Send(context.Background(), message.NewMessage("orders", []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if result.MessageQueue.BrokerName != "broker-b" {
		t.Errorf("retry should go to broker-b, got %s", result.MessageQueue)
	}
	first := a.ReceivedCodes(proto.RequestCodeSendMessage)
	second := b.ReceivedCodes(proto.RequestCodeSendMessage)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("sends a=%d b=%d", len(first), len(second))
	}
	if first[0].Opaque == second[0].Opaque {
		t.Errorf("retry reused opaque %d", first[0].Opaque)
	}
	if !p.IsPublishTopicNeedUpdate("orders") {
		t.Error("failed send should mark the route stale")
	}
}

func TestSendNonRetryableError(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodeSendMessage, Status: proto.ResponseCodeMessageIllegal})
	p := newTestProducer(t, b.Addr())

	_, err := p.Send(context.Background(), message.NewMessage("orders", []byte("x")))
	var berr *errors.BrokerError
	if !stderrors.As(err, &berr) || berr.Code != int(proto.ResponseCodeMessageIllegal) {
		t.Errorf("got %v", err)
	}
	if n := len(b.ReceivedCodes(proto.RequestCodeSendMessage)); n != 1 {
		t.Errorf("non retryable error was retried, %d sends", n)
	}
	if st := p.Stats(); st.NumErrors != 1 {
		t.Errorf("stats %+v", st)
	}
}

func TestSendNotStoredStatus(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodeSendMessage, Status: proto.ResponseCodeFlushDiskTimeout})
	p := newTestProducer(t, b.Addr())

	result, err := p.Send(context.Background(), message.NewMessage("orders", []byte("x")))
	if err != nil || result.Status != SendFlushDiskTimeout {
		t.Errorf("got %v %v", result, err)
	}
}

func TestSendTimeout(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodeSendMessage, NoResponse: true})
	p := newTestProducer(t, b.Addr(), WithSendMsgTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := p.Send(context.Background(), message.NewMessage("orders", []byte("x")))
	if !errors.IsSendTimeout(err) {
		t.Fatalf("expected send timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("send took %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start = time.Now()
	if _, err := p.Send(ctx, message.NewMessage("orders", []byte("x"))); !errors.IsSendTimeout(err) {
		t.Errorf("caller deadline: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("caller deadline not honored, took %v", elapsed)
	}
}

func TestCheckMessage(t *testing.T) {
	b := startBroker(t, "broker-a")
	p := newTestProducer(t, b.Addr(), WithMaxMessageSize(8))

	tests := []struct {
		name string
		msg  *message.Message
		want error
	}{
		{"emptyTopic", message.NewMessage("", []byte("x")), errors.ErrEmptyTopic},
		{"emptyBody", message.NewMessage("t", nil), errors.ErrEmptyBody},
		{"tooLarge", message.NewMessage("t", []byte("123456789")), errors.ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Send(context.Background(), tt.msg); !stderrors.Is(err, tt.want) {
				t.Errorf("got %v want %v", err, tt.want)
			}
		})
	}
	var cfgErr *errors.ConfigurationError
	if _, err := p.Send(context.Background(), message.NewMessage("TBW102", []byte("x"))); !stderrors.As(err, &cfgErr) {
		t.Errorf("reserved topic: %v", err)
	}
	if _, err := p.Send(context.Background(), message.NewMessage("bad topic", []byte("x"))); !stderrors.As(err, &cfgErr) {
		t.Errorf("invalid topic: %v", err)
	}
	if n := len(b.Received()); n != 0 {
		t.Errorf("invalid messages reached the broker: %d", n)
	}
}

func TestSendOneway(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	p := newTestProducer(t, b.Addr())

	if err := p.SendOneway(context.Background(), message.NewMessage("orders", []byte("x"))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.StoredCount("orders") == 1 })
	if sends := b.ReceivedCodes(proto.RequestCodeSendMessage); !sends[0].IsOneway() {
		t.Error("oneway flag not set")
	}
}

func TestSendAsync(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	p := newTestProducer(t, b.Addr())

	type outcome struct {
		result *SendResult
		err    error
	}
	ch := make(chan outcome, 1)
	err := p.SendAsync(context.Background(), message.NewMessage("orders", []byte("x")), func(r *SendResult, err error) {
		ch <- outcome{r, err}
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case o := <-ch:
		if o.err != nil || o.result.Status != SendOK {
			t.Errorf("got %v %v", o.result, o.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called")
	}

	if err := p.SendAsync(context.Background(), message.NewMessage("", []byte("x")), func(*SendResult, error) {
		t.Error("callback must not run for invalid messages")
	}); !stderrors.Is(err, errors.ErrEmptyTopic) {
		t.Errorf("got %v", err)
	}
	if err := p.SendAsync(context.Background(), message.NewMessage("orders", []byte("x")), nil); err == nil {
		t.Error("nil callback must fail")
	}
}

func TestShutdown(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	p := newTestProducer(t, b.Addr())

	p.Shutdown()
	p.Shutdown()
	if _, err := p.Send(context.Background(), message.NewMessage("orders", []byte("x"))); err != errors.ErrClosed {
		t.Errorf("got %v", err)
	}
	if err := p.SendAsync(context.Background(), message.NewMessage("orders", []byte("x")), func(*SendResult, error) {}); err != errors.ErrClosed {
		t.Errorf("got %v", err)
	}
}

func TestIsPublishTopicNeedUpdate(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	p := newTestProducer(t, b.Addr(), WithRouteRefreshInterval(time.Minute))

	if !p.IsPublishTopicNeedUpdate("orders") {
		t.Error("unknown topic needs update")
	}
	p.UpdateTopicPublishInfo("orders", &route.TopicPublishInfo{
		MessageQueues: []*message.MessageQueue{{Topic: "orders", BrokerName: "broker-a"}},
		UpdatedAt:     time.Now(),
	})
	if p.IsPublishTopicNeedUpdate("orders") {
		t.Error("fresh info does not need update")
	}
	p.UpdateTopicPublishInfo("orders", &route.TopicPublishInfo{
		MessageQueues: []*message.MessageQueue{{Topic: "orders", BrokerName: "broker-a"}},
		UpdatedAt:     time.Now().Add(-2 * time.Minute),
	})
	if !p.IsPublishTopicNeedUpdate("orders") {
		t.Error("old info needs update")
	}

	if err := p.Client().UpdateTopicRouteInfo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.IsPublishTopicNeedUpdate("orders") {
		t.Error("client refresh should have pushed a new route")
	}
}

func TestNewWithConfig(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 4)

	conf, err := DecodeConfig(`
GroupName = "toml-producer"
SendMsgTimeout = "2s"
RetryTimes = 1
QueueSelector = "hash"

[Client]
NameServerAddrs = ["` + b.Addr() + `"]
`)
	if err != nil {
		t.Fatal(err)
	}
	if conf.DefaultTopicQueueNums != DefaultTopicQueueNums || conf.SendMsgTimeout.Duration != 2*time.Second {
		t.Errorf("config %+v", conf)
	}
	p, err := NewWithConfig(conf)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	if p.Group() != "toml-producer" || p.Options().RetryTimes != 1 {
		t.Errorf("options %+v", p.Options())
	}
	if _, ok := p.Options().Selector.(*selector.Hash); !ok {
		t.Errorf("selector %T", p.Options().Selector)
	}
	msg := message.NewMessage("orders", []byte("x")).WithShardingKey("user-7")
	first, err := p.Send(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := p.Send(context.Background(), message.NewMessage("orders", []byte("y")).WithShardingKey("user-7"))
	if first.MessageQueue.QueueId != again.MessageQueue.QueueId {
		t.Error("same sharding key must land on the same queue")
	}

	conf.QueueSelector = "nope"
	if _, err := NewWithConfig(conf); err == nil || !strings.Contains(err.Error(), "QueueSelector") {
		t.Errorf("got %v", err)
	}
}
