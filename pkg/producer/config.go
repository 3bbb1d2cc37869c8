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
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kaixinbaba/rocketmq-go/pkg/client"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/selector"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

// Config is the file form of the producer options.
//
//	GroupName = "order-producer"
//	SendMsgTimeout = "3s"
//	QueueSelector = "hash"
//
//	[Client]
//	NameServerAddrs = ["127.0.0.1:9876"]
type Config struct {
	GroupName             string
	InstanceName          string
	SendMsgTimeout        util.Duration
	DefaultTopicQueueNums int
	CreateTopicKey        string
	RetryTimes            int
	CompressMsgBodyOver   int
	MaxMessageSize        int
	RouteRefreshInterval  util.Duration
	QueueSelector         string
	Client                client.Config
}

var defaultConfig = Config{
	SendMsgTimeout:        util.Duration{Duration: DefaultSendMsgTimeout},
	DefaultTopicQueueNums: DefaultTopicQueueNums,
	CreateTopicKey:        DefaultCreateTopicKey,
	RetryTimes:            DefaultRetryTimes,
	CompressMsgBodyOver:   DefaultCompressMsgBodyOver,
	MaxMessageSize:        DefaultMaxMessageSize,
	RouteRefreshInterval:  util.Duration{Duration: DefaultRouteRefreshInterval},
	QueueSelector:         "roundrobin",
}

func (c *Config) SetDefault() {
	*c = defaultConfig
	c.Client.SetDefault()
}

func LoadConfig(path string) (*Config, error) {
	conf := &Config{}
	conf.SetDefault()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func DecodeConfig(data string) (*Config, error) {
	conf := &Config{}
	conf.SetDefault()
	if _, err := toml.Decode(data, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func newSelector(name string) (selector.QueueSelector, error) {
	switch strings.ToLower(name) {
	case "", "roundrobin":
		return selector.NewRoundRobin(), nil
	case "hash":
		return selector.NewHash(), nil
	case "random":
		return selector.NewRandom(), nil
	}
	return nil, errors.NewConfigurationError("QueueSelector", "unknown selector %q", name)
}

// Options turns the config into producer options.
func (c *Config) Options() ([]Option, error) {
	sel, err := newSelector(c.QueueSelector)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithClientConfig(c.Client),
		WithInstanceName(c.InstanceName),
		WithSendMsgTimeout(c.SendMsgTimeout.Duration),
		WithDefaultTopicQueueNums(c.DefaultTopicQueueNums),
		WithCreateTopicKey(c.CreateTopicKey),
		WithRetryTimes(c.RetryTimes),
		WithCompressMsgBodyOver(c.CompressMsgBodyOver),
		WithMaxMessageSize(c.MaxMessageSize),
		WithRouteRefreshInterval(c.RouteRefreshInterval.Duration),
		WithQueueSelector(sel),
	}, nil
}

func NewWithConfig(conf *Config, extra ...Option) (*Producer, error) {
	opts, err := conf.Options()
	if err != nil {
		return nil, err
	}
	return New(conf.GroupName, append(opts, extra...)...)
}
