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
Package client is the core shared by producers and consumers of one process
group: it owns the name server view, the broker connections and the opaque
generator every outgoing command draws from.

Route refresh is one-shot. UpdateTopicRouteInfo is meant to be driven by a
caller's periodic loop.
*/
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/glog"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/multierr"

	"github.com/kaixinbaba/rocketmq-go/internal/cli"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/etcd"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging/otel"
	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/net/netutil"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/route"
	"github.com/kaixinbaba/rocketmq-go/pkg/sec"
	"github.com/kaixinbaba/rocketmq-go/pkg/version"
)

type InnerProducer interface {
	PublishTopicList() []string
	UpdateTopicPublishInfo(topic string, info *route.TopicPublishInfo)
	IsPublishTopicNeedUpdate(topic string) bool
}

type InnerConsumer interface {
	SubscriptionTopicList() []string
	UpdateTopicSubscribeInfo(topic string, mqs []*message.MessageQueue)
}

type Client struct {
	config     Config
	clientID   string
	opaque     *proto.OpaqueGenerator
	invoker    Invoker
	pool       *cli.ProcessorPool
	nameServer *NameServer
	etcdCli    *etcd.EtcdClient

	mtx       sync.RWMutex
	producers map[string]InnerProducer
	consumers map[string]InnerConsumer
	routes    map[string]*route.TopicRouteData

	closeOnce sync.Once
}

func New(conf Config) (*Client, error) {
	return NewWithTLS(conf, nil)
}

// NewWithTLS builds a client and resolves the name server list before
// returning. When conf.UseTLS is set the TLS config comes from getTLSConfig,
// or is loaded from conf.TLS if getTLSConfig is nil.
func NewWithTLS(conf Config, getTLSConfig func() *tls.Config) (*Client, error) {
	if conf.UseTLS && getTLSConfig == nil {
		if !conf.TLS.IsSet() {
			return nil, errors.NewConfigurationError("UseTLS", "requires a TLS config")
		}
		tlsConf, err := sec.LoadTLSConfig(&conf.TLS)
		if err != nil {
			return nil, errors.NewConfigurationError("TLS", "%s", err)
		}
		getTLSConfig = func() *tls.Config { return tlsConf }
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	pool := cli.NewProcessorPool(conf.Outbound, conf.UseTLS, getTLSConfig)
	c, err := newClient(conf, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.pool = pool
	return c, nil
}

// NewWithInvoker builds a client that sends through invoker instead of its
// own connections.
func NewWithInvoker(conf Config, invoker Invoker) (*Client, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return newClient(conf, invoker)
}

func newClient(conf Config, invoker Invoker) (*Client, error) {
	if conf.OTEL.Enabled {
		if err := otel.Initialize(&conf.OTEL); err != nil {
			return nil, err
		}
	}
	r, etcdCli, err := conf.newResolver()
	if err != nil {
		return nil, err
	}
	c := &Client{
		config:    conf,
		clientID:  buildClientID(conf.InstanceName),
		opaque:    proto.NewOpaqueGenerator(),
		invoker:   invoker,
		etcdCli:   etcdCli,
		producers: make(map[string]InnerProducer),
		consumers: make(map[string]InnerConsumer),
		routes:    make(map[string]*route.TopicRouteData),
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Outbound.RequestTimeout.Duration)
	defer cancel()
	if c.nameServer, err = NewNameServer(ctx, r, invoker, c.opaque); err != nil {
		if etcdCli != nil {
			etcdCli.Close()
		}
		return nil, err
	}
	glog.Infof("%s client %s started, group=%s name servers=%v",
		version.String(), c.clientID, conf.GroupName, c.nameServer.Addrs())
	return c, nil
}

func buildClientID(instance string) string {
	return fmt.Sprintf("%s@%s@%s", netutil.GetLocalIPv4Address(), instance, uuid.NewV1().String()[:8])
}

func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) GroupName() string {
	return c.config.GroupName
}

func (c *Client) OpaqueGenerator() *proto.OpaqueGenerator {
	return c.opaque
}

func (c *Client) NameServer() *NameServer {
	return c.nameServer
}

func (c *Client) RegisterProducer(group string, p InnerProducer) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, found := c.producers[group]; found {
		return fmt.Errorf("producer %s: %w", group, errors.ErrDuplicateGroup)
	}
	c.producers[group] = p
	return nil
}

func (c *Client) UnregisterProducer(group string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.producers, group)
}

func (c *Client) RegisterConsumer(group string, consumer InnerConsumer) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, found := c.consumers[group]; found {
		return fmt.Errorf("consumer %s: %w", group, errors.ErrDuplicateGroup)
	}
	c.consumers[group] = consumer
	return nil
}

func (c *Client) UnregisterConsumer(group string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.consumers, group)
}

// QueryTopicRoute fetches the route of topic and remembers it for broker
// address lookups.
func (c *Client) QueryTopicRoute(ctx context.Context, topic string) (*route.TopicRouteData, error) {
	data, err := c.nameServer.QueryTopicRoute(ctx, topic)
	if err != nil {
		return nil, err
	}
	c.mtx.Lock()
	if old, found := c.routes[topic]; !found || old.Changed(data) {
		glog.Infof("route of topic %s changed", topic)
	}
	c.routes[topic] = data
	c.mtx.Unlock()
	return data, nil
}

// FindBrokerAddr returns the master address of brokerName from any route
// fetched so far.
func (c *Client) FindBrokerAddr(brokerName string) string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, r := range c.routes {
		if b := r.FindBroker(brokerName); b != nil {
			if addr := b.MasterAddr(); addr != "" {
				return addr
			}
		}
	}
	return ""
}

// FindBrokerAddrForRead is like FindBrokerAddr but falls back to a slave.
func (c *Client) FindBrokerAddrForRead(brokerName string) string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, r := range c.routes {
		if b := r.FindBroker(brokerName); b != nil {
			if addr := b.SelectAddr(); addr != "" {
				return addr
			}
		}
	}
	return ""
}

// UpdateTopicRouteInfo refreshes every producer topic that reports stale and
// every consumer topic, pushing the new route to the registered roles.
func (c *Client) UpdateTopicRouteInfo(ctx context.Context) error {
	c.mtx.RLock()
	topics := make(map[string]struct{})
	for _, p := range c.producers {
		for _, t := range p.PublishTopicList() {
			if p.IsPublishTopicNeedUpdate(t) {
				topics[t] = struct{}{}
			}
		}
	}
	for _, consumer := range c.consumers {
		for _, t := range consumer.SubscriptionTopicList() {
			topics[t] = struct{}{}
		}
	}
	c.mtx.RUnlock()

	var err error
	for topic := range topics {
		data, e := c.QueryTopicRoute(ctx, topic)
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("topic %s: %w", topic, e))
			continue
		}
		c.pushRoute(topic, data)
	}
	return err
}

func (c *Client) pushRoute(topic string, data *route.TopicRouteData) {
	info := data.ToPublishInfo(topic)
	subs := data.ToSubscribeInfo(topic)

	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, p := range c.producers {
		for _, t := range p.PublishTopicList() {
			if t == topic {
				p.UpdateTopicPublishInfo(topic, info)
				break
			}
		}
	}
	for _, consumer := range c.consumers {
		for _, t := range consumer.SubscriptionTopicList() {
			if t == topic {
				consumer.UpdateTopicSubscribeInfo(topic, subs)
				break
			}
		}
	}
}

func (c *Client) InvokeSync(ctx context.Context, addr string, request *proto.RemotingCommand) (*proto.RemotingCommand, error) {
	return c.invoker.Invoke(ctx, addr, request)
}

func (c *Client) InvokeOneway(ctx context.Context, addr string, request *proto.RemotingCommand) error {
	return c.invoker.InvokeOneway(ctx, addr, request)
}

type heartbeatData struct {
	ClientID        string         `json:"clientID"`
	ProducerDataSet []producerData `json:"producerDataSet"`
	ConsumerDataSet []consumerData `json:"consumerDataSet"`
}

type producerData struct {
	GroupName string `json:"groupName"`
}

type subscriptionData struct {
	Topic     string `json:"topic"`
	SubString string `json:"subString"`
}

type consumerData struct {
	GroupName           string             `json:"groupName"`
	ConsumeType         string             `json:"consumeType"`
	MessageModel        string             `json:"messageModel"`
	ConsumeFromWhere    string             `json:"consumeFromWhere"`
	SubscriptionDataSet []subscriptionData `json:"subscriptionDataSet"`
	UnitMode            bool               `json:"unitMode"`
}

func (c *Client) heartbeatBody() ([]byte, error) {
	c.mtx.RLock()
	hb := heartbeatData{ClientID: c.clientID}
	for group := range c.producers {
		hb.ProducerDataSet = append(hb.ProducerDataSet, producerData{GroupName: group})
	}
	for group, consumer := range c.consumers {
		cd := consumerData{
			GroupName:        group,
			ConsumeType:      "CONSUME_ACTIVELY",
			MessageModel:     "CLUSTERING",
			ConsumeFromWhere: "CONSUME_FROM_LAST_OFFSET",
		}
		for _, t := range consumer.SubscriptionTopicList() {
			cd.SubscriptionDataSet = append(cd.SubscriptionDataSet, subscriptionData{Topic: t, SubString: "*"})
		}
		hb.ConsumerDataSet = append(hb.ConsumerDataSet, cd)
	}
	c.mtx.RUnlock()
	return json.Marshal(hb)
}

func (c *Client) masterAddrs() []string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	seen := make(map[string]struct{})
	var addrs []string
	for _, r := range c.routes {
		for _, b := range r.BrokerDataList {
			if addr := b.MasterAddr(); addr != "" {
				if _, found := seen[addr]; !found {
					seen[addr] = struct{}{}
					addrs = append(addrs, addr)
				}
			}
		}
	}
	return addrs
}

// SendHeartbeat announces the registered groups to every master broker known
// from fetched routes.
func (c *Client) SendHeartbeat(ctx context.Context) error {
	body, err := c.heartbeatBody()
	if err != nil {
		return err
	}
	for _, addr := range c.masterAddrs() {
		request := proto.NewRequestCommand(c.opaque, proto.RequestCodeHeartBeat, nil, body)
		resp, e := c.invoker.Invoke(ctx, addr, request)
		if e == nil && resp.ResponseCode() != proto.ResponseCodeSuccess {
			e = errors.NewBrokerError(resp.Code, resp.Remark)
		}
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("heartbeat to %s: %w", addr, e))
		}
	}
	return err
}

func (c *Client) unregister(ctx context.Context) {
	c.mtx.RLock()
	var groups []map[string]string
	for group := range c.producers {
		groups = append(groups, map[string]string{proto.FieldClientId: c.clientID, proto.FieldProducerGroup: group})
	}
	for group := range c.consumers {
		groups = append(groups, map[string]string{proto.FieldClientId: c.clientID, proto.FieldConsumerGroup: group})
	}
	c.mtx.RUnlock()

	for _, addr := range c.masterAddrs() {
		for _, fields := range groups {
			request := proto.NewOnewayCommand(c.opaque, proto.RequestCodeUnregisterClient, fields, nil)
			if err := c.invoker.InvokeOneway(ctx, addr, request); err != nil {
				glog.V(2).Infof("unregister from %s: %s", addr, err)
			}
		}
	}
}

// Close unregisters from known brokers on a best effort basis and closes
// every connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Outbound.WriteTimeout.Duration)
		c.unregister(ctx)
		cancel()
		if c.pool != nil {
			c.pool.Close()
		}
		if c.etcdCli != nil {
			c.etcdCli.Close()
		}
		glog.Infof("client %s closed", c.clientID)
	})
}
