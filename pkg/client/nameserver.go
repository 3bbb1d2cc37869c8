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

package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
	"github.com/kaixinbaba/rocketmq-go/pkg/resolver"
	"github.com/kaixinbaba/rocketmq-go/pkg/route"
)

// Invoker sends commands to an address. *cli.ProcessorPool implements it.
type Invoker interface {
	Invoke(ctx context.Context, addr string, request *proto.RemotingCommand) (*proto.RemotingCommand, error)
	InvokeOneway(ctx context.Context, addr string, request *proto.RemotingCommand) error
}

type NameServer struct {
	resolver resolver.Resolver
	invoker  Invoker
	opaque   *proto.OpaqueGenerator

	mtx   sync.RWMutex
	addrs []string
}

// NewNameServer resolves the name server list once. A failed resolve fails
// construction.
func NewNameServer(ctx context.Context, r resolver.Resolver, invoker Invoker, opaque *proto.OpaqueGenerator) (*NameServer, error) {
	ns := &NameServer{
		resolver: r,
		invoker:  invoker,
		opaque:   opaque,
	}
	if err := ns.UpdateNameServerAddress(ctx); err != nil {
		return nil, err
	}
	return ns, nil
}

// UpdateNameServerAddress re-resolves the list. On failure the previous list
// is kept and the error returned. An empty list is a Malformed ResolveError.
func (ns *NameServer) UpdateNameServerAddress(ctx context.Context) error {
	addrs, err := ns.resolver.Resolve(ctx)
	if err == nil && len(addrs) == 0 {
		err = errors.NewMalformedError(ns.resolver.Description(), fmt.Errorf("empty name server list"))
	}
	if err != nil {
		glog.Warningf("resolve name server via %s: %s", ns.resolver.Description(), err)
		return err
	}
	ns.mtx.Lock()
	ns.addrs = addrs
	ns.mtx.Unlock()
	return nil
}

func (ns *NameServer) Addrs() []string {
	ns.mtx.RLock()
	defer ns.mtx.RUnlock()
	out := make([]string, len(ns.addrs))
	copy(out, ns.addrs)
	return out
}

// QueryTopicRoute asks each name server in order until one answers. A topic
// the name server does not know is reported as a BrokerError with code
// TopicNotExist without trying the rest.
func (ns *NameServer) QueryTopicRoute(ctx context.Context, topic string) (*route.TopicRouteData, error) {
	addrs := ns.Addrs()
	if len(addrs) == 0 {
		return nil, errors.ErrNoNameServer
	}
	var lastErr error
	for _, addr := range addrs {
		request := proto.NewRequestCommand(ns.opaque, proto.RequestCodeGetRouteInfoByTopic,
			proto.RouteInfoRequestFields(topic), nil)
		resp, err := ns.invoker.Invoke(ctx, addr, request)
		if err != nil {
			glog.Warningf("query route of %s from %s: %s", topic, addr, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		switch resp.ResponseCode() {
		case proto.ResponseCodeSuccess:
			data, err := route.DecodeTopicRouteData(resp.Body)
			if err != nil {
				return nil, err
			}
			if logging.LOG_DEBUG {
				b := logging.NewKVBufferForLog()
				b.AddTopic(topic).AddAddr(addr).AddOpaque(request.Opaque)
				glog.Infof("route updated %s", b.String())
			}
			return data, nil
		case proto.ResponseCodeTopicNotExist:
			return nil, errors.NewBrokerError(resp.Code, resp.Remark)
		default:
			lastErr = errors.NewBrokerError(resp.Code, resp.Remark)
		}
	}
	return nil, lastErr
}
