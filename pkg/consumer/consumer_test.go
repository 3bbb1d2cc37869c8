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

package consumer

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/kaixinbaba/rocketmq-go/internal/testutil/mockbroker"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
)

func startBroker(t *testing.T, name string) *mockbroker.Broker {
	t.Helper()
	b, err := mockbroker.New(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	return b
}

func newTestConsumer(t *testing.T, nameServer string, opts ...Option) *PullConsumer {
	t.Helper()
	c, err := NewPullConsumer("test-consumer", append([]Option{WithNameServer(nameServer)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

func fill(b *mockbroker.Broker, topic string, qid int32, n int) {
	for i := 0; i < n; i++ {
		b.Put(message.NewMessage(topic, []byte(fmt.Sprintf("body-%d", i))).WithTag("TagA"), qid)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"zeroTimeout", WithPullTimeout(0), "PullTimeout"},
		{"zeroBatch", WithPullBatchSize(0), "PullBatchSize"},
		{"hugeBatch", WithPullBatchSize(maxPullBatchSize + 1), "PullBatchSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewPullConsumer("g", WithNameServer("127.0.0.1:9876"), tt.opt)
			var cfgErr *errors.ConfigurationError
			if c != nil || !stderrors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("got %v", err)
			}
		})
	}
	if _, err := NewPullConsumer(""); err == nil {
		t.Error("empty group must fail")
	}
}

func TestPull(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	fill(b, "orders", 1, 3)
	c := newTestConsumer(t, b.Addr())
	mq := &message.MessageQueue{Topic: "orders", BrokerName: "broker-a", QueueId: 1}
	ctx := context.Background()

	res, err := c.Pull(ctx, mq, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != PullFound || len(res.MessageExts) != 2 || res.NextBeginOffset != 2 || res.MaxOffset != 3 {
		t.Fatalf("unexpected %s", res)
	}
	for i, m := range res.MessageExts {
		if string(m.Body) != fmt.Sprintf("body-%d", i) || m.QueueOffset != int64(i) || m.GetTags() != "TagA" {
			t.Errorf("message %d: %s", i, m)
		}
	}
	if len(res.Body) == 0 {
		t.Error("raw body not kept")
	}

	res, err = c.Pull(ctx, mq, res.NextBeginOffset, 0)
	if err != nil || res.Status != PullFound || len(res.MessageExts) != 1 || res.NextBeginOffset != 3 {
		t.Fatalf("second pull: %v %v", res, err)
	}

	tests := []struct {
		name   string
		offset int64
		want   PullStatus
	}{
		{"atEnd", 3, PullNoNewMsg},
		{"beyondEnd", 10, PullOffsetIllegal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Pull(ctx, mq, tt.offset, 1)
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want || len(res.MessageExts) != 0 || res.NextBeginOffset != 3 {
				t.Errorf("got %s", res)
			}
		})
	}
	if n := c.Stats().NumRequests; n != 4 {
		t.Errorf("stats count %d", n)
	}
}

func TestPullNoMatchedAndBrokerError(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	c := newTestConsumer(t, b.Addr())
	mq := &message.MessageQueue{Topic: "orders", BrokerName: "broker-a", QueueId: 0}

	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodePullMessage, Status: proto.ResponseCodePullRetryImmediately, Times: 1})
	res, err := c.Pull(context.Background(), mq, 0, 1)
	if err != nil || res.Status != PullNoMsgMatched {
		t.Fatalf("got %v %v", res, err)
	}

	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodePullMessage, Status: proto.ResponseCodeSystemBusy, Remark: "busy", Times: 1})
	_, err = c.Pull(context.Background(), mq, 0, 1)
	var brokerErr *errors.BrokerError
	if !stderrors.As(err, &brokerErr) || brokerErr.Code != int(proto.ResponseCodeSystemBusy) {
		t.Errorf("got %v", err)
	}
}

func TestPullBrokerTimeout(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	c := newTestConsumer(t, b.Addr(), WithPullTimeout(200*time.Millisecond))
	b.SetMockInfo(&mockbroker.MockInfo{Code: proto.RequestCodePullMessage, NoResponse: true})

	mq := &message.MessageQueue{Topic: "orders", BrokerName: "broker-a", QueueId: 0}
	start := time.Now()
	res, err := c.Pull(context.Background(), mq, 5, 1)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if res.Status != PullBrokerTimeout || res.NextBeginOffset != 5 {
		t.Errorf("got %s", res)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("pull took %v", elapsed)
	}
}

func TestPullArguments(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 1)
	c := newTestConsumer(t, b.Addr())

	if _, err := c.Pull(context.Background(), nil, 0, 1); err != errors.ErrEmptyTopic {
		t.Errorf("nil queue: %v", err)
	}
	mq := &message.MessageQueue{Topic: "orders", BrokerName: "broker-a"}
	if _, err := c.Pull(context.Background(), mq, -1, 1); err == nil {
		t.Error("negative offset must fail")
	}
	unknown := &message.MessageQueue{Topic: "orders", BrokerName: "broker-z"}
	if _, err := c.Pull(context.Background(), unknown, 0, 1); !stderrors.Is(err, errors.ErrNoRoute) {
		t.Errorf("unknown broker: %v", err)
	}
}

func TestFetchQueuesAndOffsets(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 4)
	fill(b, "orders", 2, 5)
	c := newTestConsumer(t, b.Addr())
	ctx := context.Background()

	mqs, err := c.FetchSubscribeMessageQueues(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(mqs) != 4 || len(c.MessageQueues("orders")) != 4 {
		t.Fatalf("got %d queues", len(mqs))
	}

	mq := mqs[2]
	if hi, err := c.MaxOffset(ctx, mq); err != nil || hi != 5 {
		t.Errorf("max offset %d %v", hi, err)
	}
	if lo, err := c.MinOffset(ctx, mq); err != nil || lo != 0 {
		t.Errorf("min offset %d %v", lo, err)
	}
}

func TestSubscribeAndShutdown(t *testing.T) {
	b := startBroker(t, "broker-a")
	b.AddTopic("orders", 2)
	c := newTestConsumer(t, b.Addr())
	c.Subscribe("orders")
	c.Subscribe("orders")
	if topics := c.SubscriptionTopicList(); len(topics) != 1 || topics[0] != "orders" {
		t.Fatalf("topics %v", topics)
	}
	if err := c.Client().UpdateTopicRouteInfo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if mqs := c.MessageQueues("orders"); len(mqs) != 2 {
		t.Errorf("subscribe info not pushed: %d", len(mqs))
	}

	c.Shutdown()
	c.Shutdown()
	mq := &message.MessageQueue{Topic: "orders", BrokerName: "broker-a"}
	if _, err := c.Pull(context.Background(), mq, 0, 1); err != errors.ErrClosed {
		t.Errorf("got %v", err)
	}
}
