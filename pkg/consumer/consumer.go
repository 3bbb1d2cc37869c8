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
Package consumer pulls messages from queues chosen by the caller. There is no
rebalancing: the caller decides which queues to read and tracks offsets.
*/
package consumer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/client"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging/otel"
	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/stats"
)

type PullConsumer struct {
	group   string
	options Options
	client  *client.Client
	stats   *stats.Statistics

	mtx           sync.RWMutex
	subscribeInfo map[string][]*message.MessageQueue

	closed atomic.Bool
}

var _ client.InnerConsumer = (*PullConsumer)(nil)

func NewPullConsumer(group string, opts ...Option) (*PullConsumer, error) {
	if group == "" {
		return nil, errors.NewConfigurationError("GroupName", "not specified")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	conf := options.ClientConfig
	conf.GroupName = group
	if options.InstanceName != "" {
		conf.InstanceName = options.InstanceName
	}
	if options.Resolver != nil {
		conf.Resolver = options.Resolver
	}
	if conf.Outbound.RequestTimeout.Duration == 0 {
		conf.Outbound.RequestTimeout.Duration = options.PullTimeout
	}
	cli, err := client.New(conf)
	if err != nil {
		return nil, err
	}
	c := &PullConsumer{
		group:         group,
		options:       options,
		client:        cli,
		stats:         stats.NewStatistics(),
		subscribeInfo: make(map[string][]*message.MessageQueue),
	}
	if err := cli.RegisterConsumer(group, c); err != nil {
		cli.Close()
		return nil, err
	}
	glog.Infof("pull consumer %s started, timeout=%v batch=%d", group, options.PullTimeout, options.PullBatchSize)
	return c, nil
}

func (c *PullConsumer) Client() *client.Client {
	return c.client
}

func (c *PullConsumer) Stats() stats.StatsData {
	return c.stats.Get(stats.RequestTypePull)
}

func (c *PullConsumer) Shutdown() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.client.UnregisterConsumer(c.group)
	c.client.Close()
}

// Subscribe adds topic to the topics whose queues the client keeps fresh.
func (c *PullConsumer) Subscribe(topic string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, found := c.subscribeInfo[topic]; !found {
		c.subscribeInfo[topic] = nil
	}
}

func (c *PullConsumer) SubscriptionTopicList() []string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	topics := make([]string, 0, len(c.subscribeInfo))
	for t := range c.subscribeInfo {
		topics = append(topics, t)
	}
	return topics
}

func (c *PullConsumer) UpdateTopicSubscribeInfo(topic string, mqs []*message.MessageQueue) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.subscribeInfo[topic] = mqs
}

// MessageQueues returns the last known readable queues of a subscribed topic.
func (c *PullConsumer) MessageQueues(topic string) []*message.MessageQueue {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.subscribeInfo[topic]
}

// FetchSubscribeMessageQueues asks the name server for the readable queues
// of topic.
func (c *PullConsumer) FetchSubscribeMessageQueues(ctx context.Context, topic string) ([]*message.MessageQueue, error) {
	data, err := c.client.QueryTopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	mqs := data.ToSubscribeInfo(topic)
	c.UpdateTopicSubscribeInfo(topic, mqs)
	return mqs, nil
}

func (c *PullConsumer) brokerAddr(ctx context.Context, mq *message.MessageQueue) (string, error) {
	if addr := c.client.FindBrokerAddrForRead(mq.BrokerName); addr != "" {
		return addr, nil
	}
	if _, err := c.client.QueryTopicRoute(ctx, mq.Topic); err != nil {
		return "", err
	}
	if addr := c.client.FindBrokerAddrForRead(mq.BrokerName); addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("broker %s: %w", mq.BrokerName, errors.ErrNoRoute)
}

// Pull reads up to maxNums messages of mq starting at offset. A pull that
// times out on the client side is reported as PullBrokerTimeout with a nil
// error.
func (c *PullConsumer) Pull(ctx context.Context, mq *message.MessageQueue, offset int64, maxNums int) (*PullResult, error) {
	if c.closed.Load() {
		return nil, errors.ErrClosed
	}
	if mq == nil || mq.Topic == "" {
		return nil, errors.ErrEmptyTopic
	}
	if offset < 0 {
		return nil, errors.NewConfigurationError("offset", "must not be negative, got %d", offset)
	}
	if maxNums <= 0 {
		maxNums = c.options.PullBatchSize
	}
	ctx, cancel := context.WithTimeout(ctx, c.options.PullTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.pull(ctx, mq, offset, maxNums)
	c.stats.Put(stats.RequestTypePull, time.Since(start), err)

	status := otel.StatusSuccess
	switch {
	case err != nil:
		status = otel.StatusError
	case result.Status == PullBrokerTimeout:
		status = otel.StatusTimeout
	}
	otel.RecordPull(mq.Topic, mq.BrokerName, status, time.Since(start))
	return result, err
}

func (c *PullConsumer) pull(ctx context.Context, mq *message.MessageQueue, offset int64, maxNums int) (*PullResult, error) {
	addr, err := c.brokerAddr(ctx, mq)
	if err != nil {
		return nil, err
	}
	header := &proto.PullMessageRequestHeader{
		ConsumerGroup: c.group,
		Topic:         mq.Topic,
		QueueId:       int32(mq.QueueId),
		QueueOffset:   offset,
		MaxMsgNums:    int32(maxNums),
		Subscription:  DefaultSubExpression,
		SubVersion:    time.Now().UnixMilli(),
	}
	request := proto.NewRequestCommand(c.client.OpaqueGenerator(), proto.RequestCodePullMessage, header.Encode(), nil)
	resp, err := c.client.InvokeSync(ctx, addr, request)
	if err != nil {
		if errors.IsSendTimeout(err) {
			return &PullResult{Status: PullBrokerTimeout, NextBeginOffset: offset}, nil
		}
		return nil, err
	}
	return processPullResponse(resp)
}

func processPullResponse(resp *proto.RemotingCommand) (*PullResult, error) {
	var status PullStatus
	switch resp.ResponseCode() {
	case proto.ResponseCodeSuccess:
		status = PullFound
	case proto.ResponseCodePullNotFound:
		status = PullNoNewMsg
	case proto.ResponseCodePullRetryImmediately:
		status = PullNoMsgMatched
	case proto.ResponseCodePullOffsetMoved:
		status = PullOffsetIllegal
	default:
		return nil, errors.NewBrokerError(resp.Code, resp.Remark)
	}
	h, err := proto.DecodePullMessageResponseHeader(resp.ExtFields)
	if err != nil {
		return nil, errors.NewFramingError("pull response header", err)
	}
	result := &PullResult{
		NextBeginOffset:      h.NextBeginOffset,
		MinOffset:            h.MinOffset,
		MaxOffset:            h.MaxOffset,
		Status:               status,
		SuggestWhichBrokerId: h.SuggestWhichBrokerId,
		Body:                 resp.Body,
	}
	if status == PullFound {
		if result.MessageExts, err = message.DecodeMessage(resp.Body); err != nil {
			return nil, err
		}
	}
	if logging.LOG_DEBUG {
		glog.Infof("pull opaque=%d %s", resp.Opaque, result)
	}
	return result, nil
}

func (c *PullConsumer) queryOffset(ctx context.Context, code proto.RequestCode, mq *message.MessageQueue) (int64, error) {
	addr, err := c.brokerAddr(ctx, mq)
	if err != nil {
		return 0, err
	}
	header := &proto.QueueOffsetRequestHeader{Topic: mq.Topic, QueueId: int32(mq.QueueId)}
	request := proto.NewRequestCommand(c.client.OpaqueGenerator(), code, header.Encode(), nil)
	resp, err := c.client.InvokeSync(ctx, addr, request)
	if err != nil {
		return 0, err
	}
	if resp.ResponseCode() != proto.ResponseCodeSuccess {
		return 0, errors.NewBrokerError(resp.Code, resp.Remark)
	}
	v, _ := resp.GetExtField(proto.FieldOffset)
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.NewFramingError("offset field", err)
	}
	return offset, nil
}

// MaxOffset returns the offset after the last message of mq.
func (c *PullConsumer) MaxOffset(ctx context.Context, mq *message.MessageQueue) (int64, error) {
	return c.queryOffset(ctx, proto.RequestCodeGetMaxOffset, mq)
}

func (c *PullConsumer) MinOffset(ctx context.Context, mq *message.MessageQueue) (int64, error) {
	return c.queryOffset(ctx, proto.RequestCodeGetMinOffset, mq)
}
