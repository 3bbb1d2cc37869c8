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
	"crypto/tls"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/client"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/resolver"
	"github.com/kaixinbaba/rocketmq-go/pkg/selector"
)

const (
	DefaultSendMsgTimeout       = 3 * time.Second
	DefaultTopicQueueNums       = 4
	DefaultCreateTopicKey       = "TBW102"
	DefaultRetryTimes           = 2
	DefaultCompressMsgBodyOver  = 4 * 1024
	DefaultMaxMessageSize       = 4 * 1024 * 1024
	DefaultRouteRefreshInterval = 30 * time.Second
	maxTopicLength              = 127
)

// Options is assembled once by New from the Option values and not changed
// afterwards. A nil Resolver leaves the choice to the client config, which by
// default is the HTTP resolver for the DEFAULT instance.
type Options struct {
	SendMsgTimeout        time.Duration
	DefaultTopicQueueNums int
	CreateTopicKey        string
	Resolver              resolver.Resolver
	Selector              selector.QueueSelector
	RetryTimes            int
	CompressMsgBodyOver   int
	MaxMessageSize        int
	InstanceName          string
	RouteRefreshInterval  time.Duration
	ClientConfig          client.Config
	GetTLSConfig          func() *tls.Config
}

type Option func(*Options)

func defaultOptions() Options {
	opts := Options{
		SendMsgTimeout:        DefaultSendMsgTimeout,
		DefaultTopicQueueNums: DefaultTopicQueueNums,
		CreateTopicKey:        DefaultCreateTopicKey,
		RetryTimes:            DefaultRetryTimes,
		CompressMsgBodyOver:   DefaultCompressMsgBodyOver,
		MaxMessageSize:        DefaultMaxMessageSize,
		RouteRefreshInterval:  DefaultRouteRefreshInterval,
	}
	opts.ClientConfig.SetDefault()
	return opts
}

func WithSendMsgTimeout(d time.Duration) Option {
	return func(o *Options) { o.SendMsgTimeout = d }
}

func WithDefaultTopicQueueNums(n int) Option {
	return func(o *Options) { o.DefaultTopicQueueNums = n }
}

func WithCreateTopicKey(key string) Option {
	return func(o *Options) { o.CreateTopicKey = key }
}

func WithResolver(r resolver.Resolver) Option {
	return func(o *Options) { o.Resolver = r }
}

// WithNameServer uses addrs as is, falling back to the default HTTP resolver
// when the list is empty.
func WithNameServer(addrs ...string) Option {
	return func(o *Options) {
		o.Resolver = resolver.NewPassthroughResolver(addrs, resolver.NewHttpResolver(resolver.DefaultInstance))
	}
}

// WithNameServerDomain points the HTTP resolver at url.
func WithNameServerDomain(url string) Option {
	return func(o *Options) {
		o.Resolver = resolver.NewHttpResolverWithDomain(resolver.DefaultInstance, url)
	}
}

func WithQueueSelector(s selector.QueueSelector) Option {
	return func(o *Options) { o.Selector = s }
}

func WithRetryTimes(n int) Option {
	return func(o *Options) { o.RetryTimes = n }
}

func WithCompressMsgBodyOver(n int) Option {
	return func(o *Options) { o.CompressMsgBodyOver = n }
}

func WithMaxMessageSize(n int) Option {
	return func(o *Options) { o.MaxMessageSize = n }
}

func WithInstanceName(name string) Option {
	return func(o *Options) { o.InstanceName = name }
}

func WithRouteRefreshInterval(d time.Duration) Option {
	return func(o *Options) { o.RouteRefreshInterval = d }
}

// WithClientConfig sets the connection, discovery and metrics settings of
// the underlying client.
func WithClientConfig(conf client.Config) Option {
	return func(o *Options) { o.ClientConfig = conf }
}

func WithTLS(getTLSConfig func() *tls.Config) Option {
	return func(o *Options) {
		o.GetTLSConfig = getTLSConfig
		o.ClientConfig.UseTLS = getTLSConfig != nil
	}
}

func (o *Options) validate() error {
	if o.SendMsgTimeout <= 0 {
		return errors.NewConfigurationError("SendMsgTimeout", "must be positive, got %v", o.SendMsgTimeout)
	}
	if o.DefaultTopicQueueNums <= 0 {
		return errors.NewConfigurationError("DefaultTopicQueueNums", "must be positive, got %d", o.DefaultTopicQueueNums)
	}
	if o.CreateTopicKey == "" {
		return errors.NewConfigurationError("CreateTopicKey", "not specified")
	}
	if o.RetryTimes < 0 {
		return errors.NewConfigurationError("RetryTimes", "must not be negative, got %d", o.RetryTimes)
	}
	if o.CompressMsgBodyOver <= 0 {
		return errors.NewConfigurationError("CompressMsgBodyOver", "must be positive, got %d", o.CompressMsgBodyOver)
	}
	if o.MaxMessageSize <= 0 {
		return errors.NewConfigurationError("MaxMessageSize", "must be positive, got %d", o.MaxMessageSize)
	}
	if o.RouteRefreshInterval <= 0 {
		o.RouteRefreshInterval = DefaultRouteRefreshInterval
	}
	if o.Selector == nil {
		o.Selector = selector.NewRoundRobin()
	}
	return nil
}
