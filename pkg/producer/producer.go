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
Package producer sends messages to topics.

A Send looks up the topic's publish info (fetching the route when missing or
stale), lets the queue selector pick a queue, and sends one command per
attempt, each with a fresh opaque. Retryable failures mark the route stale
and the next attempt prefers a different broker. The whole call, retries
included, is bounded by the send timeout or the caller's deadline, whichever
is sooner.
*/
package producer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
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
	"github.com/kaixinbaba/rocketmq-go/pkg/route"
	"github.com/kaixinbaba/rocketmq-go/pkg/stats"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

type communicationMode int

const (
	modeSync communicationMode = iota
	modeOneway
)

type Producer struct {
	group   string
	options Options
	client  *client.Client
	stats   *stats.Statistics

	mtx         sync.RWMutex
	publishInfo map[string]*route.TopicPublishInfo
	stale       map[string]bool

	asyncMtx sync.Mutex
	wgAsync  sync.WaitGroup
	closed   atomic.Bool
}

var _ client.InnerProducer = (*Producer)(nil)

// New validates the options, resolves the name servers and registers the
// producer with its client. No producer is returned if any step fails.
func New(group string, opts ...Option) (*Producer, error) {
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
		conf.Outbound.RequestTimeout.Duration = options.SendMsgTimeout
	}
	cli, err := client.NewWithTLS(conf, options.GetTLSConfig)
	if err != nil {
		return nil, err
	}
	p := &Producer{
		group:       group,
		options:     options,
		client:      cli,
		stats:       stats.NewStatistics(),
		publishInfo: make(map[string]*route.TopicPublishInfo),
		stale:       make(map[string]bool),
	}
	if err := cli.RegisterProducer(group, p); err != nil {
		cli.Close()
		return nil, err
	}
	glog.Infof("producer %s started, timeout=%v retry=%d queueNums=%d createTopicKey=%s",
		group, options.SendMsgTimeout, options.RetryTimes, options.DefaultTopicQueueNums, options.CreateTopicKey)
	return p, nil
}

func (p *Producer) Group() string {
	return p.group
}

func (p *Producer) Options() Options {
	return p.options
}

// Client returns the client the producer sends through.
func (p *Producer) Client() *client.Client {
	return p.client
}

// Stats returns the latency summary of all sends so far.
func (p *Producer) Stats() stats.StatsData {
	return p.stats.All()
}

func (p *Producer) Statistics() *stats.Statistics {
	return p.stats
}

// Shutdown waits for pending asynchronous sends and closes the client.
func (p *Producer) Shutdown() {
	p.asyncMtx.Lock()
	swapped := p.closed.CompareAndSwap(false, true)
	p.asyncMtx.Unlock()
	if !swapped {
		return
	}
	p.wgAsync.Wait()
	p.client.UnregisterProducer(p.group)
	p.client.Close()
	glog.Infof("producer %s shut down", p.group)
}

func (p *Producer) PublishTopicList() []string {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	topics := make([]string, 0, len(p.publishInfo))
	for t := range p.publishInfo {
		topics = append(topics, t)
	}
	return topics
}

func (p *Producer) UpdateTopicPublishInfo(topic string, info *route.TopicPublishInfo) {
	if topic == "" || info == nil {
		return
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.publishInfo[topic] = info
	delete(p.stale, topic)
}

// IsPublishTopicNeedUpdate reports a topic with no usable queues, one marked
// stale by a failed send, or one whose route is older than the refresh
// interval.
func (p *Producer) IsPublishTopicNeedUpdate(topic string) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	info, found := p.publishInfo[topic]
	if !found || !info.Ok() || p.stale[topic] {
		return true
	}
	return time.Since(info.UpdatedAt) > p.options.RouteRefreshInterval
}

func (p *Producer) markStale(topic string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.stale[topic] = true
}

func (p *Producer) checkMessage(msg *message.Message) error {
	if msg == nil {
		return errors.ErrEmptyBody
	}
	if msg.Topic == "" {
		return errors.ErrEmptyTopic
	}
	if len(msg.Topic) > maxTopicLength || strings.ContainsAny(msg.Topic, " \t\r\n@%") {
		return errors.NewConfigurationError("Topic", "invalid topic %q", msg.Topic)
	}
	if msg.Topic == p.options.CreateTopicKey {
		return errors.NewConfigurationError("Topic", "%s is reserved", msg.Topic)
	}
	if len(msg.Body) == 0 {
		return errors.ErrEmptyBody
	}
	if len(msg.Body) > p.options.MaxMessageSize {
		return fmt.Errorf("%d bytes over limit %d: %w", len(msg.Body), p.options.MaxMessageSize, errors.ErrMessageTooLarge)
	}
	return nil
}

// findPublishInfo returns the publish info of topic, fetching the route when
// it is missing or stale. A topic the name server does not know borrows the
// route of the create-topic key, capped at the default queue number, so the
// broker can create it on first send.
func (p *Producer) findPublishInfo(ctx context.Context, topic string) (*route.TopicPublishInfo, error) {
	p.mtx.RLock()
	info := p.publishInfo[topic]
	stale := p.stale[topic]
	p.mtx.RUnlock()
	if info.Ok() && !stale {
		return info, nil
	}

	data, err := p.client.QueryTopicRoute(ctx, topic)
	var berr *errors.BrokerError
	if stderrors.As(err, &berr) && berr.Code == int(proto.ResponseCodeTopicNotExist) {
		glog.V(2).Infof("topic %s not found, using route of %s", topic, p.options.CreateTopicKey)
		if data, err = p.client.QueryTopicRoute(ctx, p.options.CreateTopicKey); err == nil {
			data = data.Clone()
			data.CapQueueNums(p.options.DefaultTopicQueueNums)
		}
	}
	if err != nil {
		if info.Ok() {
			glog.Warningf("refresh route of %s failed, keep using the old one: %s", topic, err)
			return info, nil
		}
		return nil, err
	}
	fresh := data.ToPublishInfo(topic)
	if !fresh.Ok() {
		return nil, fmt.Errorf("topic %s: %w", topic, errors.ErrNoRoute)
	}
	p.UpdateTopicPublishInfo(topic, fresh)
	return fresh, nil
}

// selectQueue picks among the queues not on lastBroker when there are any.
func (p *Producer) selectQueue(info *route.TopicPublishInfo, msg *message.Message, lastBroker string) *message.MessageQueue {
	mqs := info.MessageQueues
	if lastBroker != "" {
		others := make([]*message.MessageQueue, 0, len(mqs))
		for _, mq := range mqs {
			if mq.BrokerName != lastBroker {
				others = append(others, mq)
			}
		}
		if len(others) != 0 {
			mqs = others
		}
	}
	idx := p.options.Selector.Select(mqs, msg)
	if idx < 0 || idx >= len(mqs) {
		return nil
	}
	return mqs[idx]
}

// prepareBody compresses bodies over the threshold. msg.Body is left as is.
func (p *Producer) prepareBody(msg *message.Message) ([]byte, int32) {
	if len(msg.Body) > p.options.CompressMsgBodyOver {
		return message.CompressBody(msg.Body), message.SysFlagCompressed
	}
	return msg.Body, 0
}

// Send delivers msg and waits for the broker's answer.
func (p *Producer) Send(ctx context.Context, msg *message.Message) (*SendResult, error) {
	if p.closed.Load() {
		return nil, errors.ErrClosed
	}
	start := time.Now()
	result, err := p.send(ctx, msg, modeSync, 1+p.options.RetryTimes)
	p.stats.Put(stats.RequestTypeSend, time.Since(start), err)
	return result, err
}

// SendOneway writes msg to a broker without waiting for an answer. It is
// attempted once.
func (p *Producer) SendOneway(ctx context.Context, msg *message.Message) error {
	if p.closed.Load() {
		return errors.ErrClosed
	}
	start := time.Now()
	_, err := p.send(ctx, msg, modeOneway, 1)
	p.stats.Put(stats.RequestTypeSendOneway, time.Since(start), err)
	if err == nil {
		otel.RecordCount(otel.SendOneway, []otel.Tags{{TagName: otel.Topic, TagValue: msg.Topic}})
	}
	return err
}

// SendAsync validates msg, then sends it in the background and reports the
// outcome to callback. Errors found before sending are returned directly and
// the callback is not called.
func (p *Producer) SendAsync(ctx context.Context, msg *message.Message, callback SendCallback) error {
	if callback == nil {
		return errors.NewConfigurationError("callback", "not specified")
	}
	if err := p.checkMessage(msg); err != nil {
		return err
	}
	p.asyncMtx.Lock()
	if p.closed.Load() {
		p.asyncMtx.Unlock()
		return errors.ErrClosed
	}
	p.wgAsync.Add(1)
	p.asyncMtx.Unlock()
	go func() {
		defer p.wgAsync.Done()
		start := time.Now()
		result, err := p.send(ctx, msg, modeSync, 1+p.options.RetryTimes)
		p.stats.Put(stats.RequestTypeSendAsync, time.Since(start), err)
		callback(result, err)
	}()
	return nil
}

func (p *Producer) send(ctx context.Context, msg *message.Message, mode communicationMode, times int) (*SendResult, error) {
	if err := p.checkMessage(msg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.options.SendMsgTimeout)
	defer cancel()

	info, err := p.findPublishInfo(ctx, msg.Topic)
	if err != nil {
		return nil, p.timeoutOr(ctx, err)
	}

	message.SetUniqID(msg)
	body, sysFlag := p.prepareBody(msg)

	var (
		lastErr    error
		lastBroker string
	)
	for attempt := 0; attempt < times; attempt++ {
		if ctx.Err() != nil {
			break
		}
		mq := p.selectQueue(info, msg, lastBroker)
		if mq == nil {
			return nil, fmt.Errorf("topic %s: %w", msg.Topic, errors.ErrNoRoute)
		}
		lastBroker = mq.BrokerName

		result, err := p.sendKernel(ctx, info, mq, msg, body, sysFlag, mode)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if logging.LOG_DEBUG || attempt == times-1 {
			b := logging.NewKVBufferForLog()
			b.AddTopic(msg.Topic).AddQueue(mq.BrokerName, mq.QueueId).AddTryNo(attempt).Add([]byte("err"), err.Error())
			glog.Warningf("send failed %s", b.String())
		}
		if !errors.IsRetryable(err) {
			break
		}
		p.markStale(msg.Topic)
		if attempt < times-1 {
			otel.RecordCount(otel.SendRetry, []otel.Tags{{TagName: otel.Topic, TagValue: msg.Topic}})
		}
	}
	otel.RecordCount(otel.SendFail, []otel.Tags{{TagName: otel.Topic, TagValue: msg.Topic}})
	if lastErr == nil {
		lastErr = errors.ErrSendTimeout
	}
	return nil, p.timeoutOr(ctx, lastErr)
}

// timeoutOr reports ErrSendTimeout once the send deadline has passed.
func (p *Producer) timeoutOr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded && !errors.IsSendTimeout(err) {
		return fmt.Errorf("%w: last error: %s", errors.ErrSendTimeout, err)
	}
	return err
}

func (p *Producer) brokerAddr(info *route.TopicPublishInfo, brokerName string) string {
	if info.RouteData != nil {
		if b := info.RouteData.FindBroker(brokerName); b != nil {
			if addr := b.MasterAddr(); addr != "" {
				return addr
			}
		}
	}
	return p.client.FindBrokerAddr(brokerName)
}

func (p *Producer) sendKernel(ctx context.Context, info *route.TopicPublishInfo, mq *message.MessageQueue,
	msg *message.Message, body []byte, sysFlag int32, mode communicationMode) (*SendResult, error) {

	addr := p.brokerAddr(info, mq.BrokerName)
	if addr == "" {
		return nil, fmt.Errorf("broker %s: %w", mq.BrokerName, errors.ErrNoRoute)
	}
	header := &proto.SendMessageRequestHeader{
		ProducerGroup:         p.group,
		Topic:                 msg.Topic,
		DefaultTopic:          p.options.CreateTopicKey,
		DefaultTopicQueueNums: int32(p.options.DefaultTopicQueueNums),
		QueueId:               int32(mq.QueueId),
		SysFlag:               sysFlag,
		BornTimestamp:         util.NowMillis(),
		Flag:                  msg.Flag,
		Properties:            msg.MarshallProperties(),
	}
	gen := p.client.OpaqueGenerator()

	start := time.Now()
	if mode == modeOneway {
		request := proto.NewOnewayCommand(gen, proto.RequestCodeSendMessage, header.Encode(), body)
		err := p.client.InvokeOneway(ctx, addr, request)
		otel.RecordSend(msg.Topic, mq.BrokerName, sendStatus(err), time.Since(start))
		return nil, err
	}

	request := proto.NewRequestCommand(gen, proto.RequestCodeSendMessage, header.Encode(), body)
	resp, err := p.client.InvokeSync(ctx, addr, request)
	if err == nil {
		if logging.LOG_VERBOSE {
			glog.Infof("send opaque=%d -> %s: %s", request.Opaque, addr, resp)
		}
		var result *SendResult
		if result, err = processSendResponse(mq, msg, resp); err == nil {
			otel.RecordSend(msg.Topic, mq.BrokerName, otel.StatusSuccess, time.Since(start))
			return result, nil
		}
	}
	otel.RecordSend(msg.Topic, mq.BrokerName, sendStatus(err), time.Since(start))
	return nil, err
}

func sendStatus(err error) string {
	switch {
	case err == nil:
		return otel.StatusSuccess
	case errors.IsSendTimeout(err):
		return otel.StatusTimeout
	case errors.IsRetryable(err):
		return otel.StatusWarning
	default:
		return otel.StatusError
	}
}

func processSendResponse(mq *message.MessageQueue, msg *message.Message, resp *proto.RemotingCommand) (*SendResult, error) {
	var status SendStatus
	switch resp.ResponseCode() {
	case proto.ResponseCodeSuccess:
		status = SendOK
	case proto.ResponseCodeFlushDiskTimeout:
		status = SendFlushDiskTimeout
	case proto.ResponseCodeFlushSlaveTimeout:
		status = SendFlushSlaveTimeout
	case proto.ResponseCodeSlaveNotAvailable:
		status = SendSlaveNotAvailable
	default:
		return nil, errors.NewBrokerError(resp.Code, resp.Remark)
	}
	h, err := proto.DecodeSendMessageResponseHeader(resp.ExtFields)
	if err != nil {
		return nil, errors.NewFramingError("send response header", err)
	}
	queue := *mq
	queue.QueueId = int(h.QueueId)
	return &SendResult{
		Status:       status,
		MsgID:        msg.GetUniqueKey(),
		OffsetMsgID:  h.MsgId,
		MessageQueue: &queue,
		QueueOffset:  h.QueueOffset,
		RegionID:     h.RegionId,
		TraceOn:      h.TraceOn,
	}, nil
}
