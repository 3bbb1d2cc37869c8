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

package cli

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	rmqio "github.com/kaixinbaba/rocketmq-go/pkg/io"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
)

// Processor owns one connection to a broker or name server. Requests are
// queued to a single goroutine that writes frames and dispatches responses
// by opaque.
type Processor struct {
	server     rmqio.ServiceEndpoint
	config     rmqio.OutboundConfig
	proc       *requestProcessor
	chDone     chan struct{}
	chProcDone chan struct{}
	chRequest  chan *RequestContext
	startOnce  sync.Once
	closeOnce  sync.Once
}

func NewProcessor(server rmqio.ServiceEndpoint, config rmqio.OutboundConfig, getTLSConfig func() *tls.Config) *Processor {
	config.SetDefaultIfNotDefined()
	return &Processor{
		server: server,
		config: config,
		proc: &requestProcessor{
			server:       server,
			config:       config,
			getTLSConfig: getTLSConfig,
		},
		chDone:     make(chan struct{}),
		chProcDone: make(chan struct{}),
		chRequest:  make(chan *RequestContext, config.ReqChanBufSize),
	}
}

func (c *Processor) Start() {
	c.startOnce.Do(func() {
		go doRequestProcess(c.proc, c.chDone, c.chProcDone, c.chRequest)
	})
}

func (c *Processor) Close() {
	c.closeOnce.Do(func() {
		c.Start()
		close(c.chDone)
		<-c.chProcDone
	})
}

func (c *Processor) Addr() string {
	return c.server.Addr
}

func (c *Processor) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.config.RequestTimeout.Duration)
}

func (c *Processor) enqueue(ctx context.Context, request *proto.RemotingCommand) (chan IResponseContext, error) {
	ch := make(chan IResponseContext, 1)
	r := NewRequestContext(request, c.deadline(ctx), ch)
	select {
	case <-c.chDone:
		return nil, ErrProcessorClosed
	default:
	}
	select {
	case c.chRequest <- r:
		return ch, nil
	case <-c.chDone:
		return nil, ErrProcessorClosed
	case <-ctx.Done():
		return nil, ctxError(ctx)
	}
}

func ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ErrSendTimeout
	}
	return ctx.Err()
}

// wait returns once the response arrives, ctx is done or the request loop
// has exited. A request queued after the loop drained is never answered.
func (c *Processor) wait(ctx context.Context, ch chan IResponseContext) (*proto.RemotingCommand, error) {
	select {
	case r := <-ch:
		return r.GetResponse(), r.GetError()
	case <-ctx.Done():
		return nil, ctxError(ctx)
	case <-c.chProcDone:
		select {
		case r := <-ch:
			return r.GetResponse(), r.GetError()
		default:
			return nil, ErrProcessorClosed
		}
	}
}

// Invoke sends request and waits for the response carrying the same opaque.
// It gives up with errors.ErrSendTimeout once the context deadline, or the
// configured request timeout when there is none, has passed.
func (c *Processor) Invoke(ctx context.Context, request *proto.RemotingCommand) (*proto.RemotingCommand, error) {
	c.Start()
	ch, err := c.enqueue(ctx, request)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, ch)
}

// InvokeOneway returns once the frame is written. The request should carry
// the oneway flag; it is never tracked for a response.
func (c *Processor) InvokeOneway(ctx context.Context, request *proto.RemotingCommand) error {
	if !request.IsOneway() {
		request.Flag |= proto.RPCOneway
	}
	c.Start()
	ch, err := c.enqueue(ctx, request)
	if err != nil {
		return err
	}
	_, err = c.wait(ctx, ch)
	return err
}

// ProcessorPool keeps one processor per address.
type ProcessorPool struct {
	config       rmqio.OutboundConfig
	getTLSConfig func() *tls.Config
	useTLS       bool

	mtx    sync.Mutex
	procs  map[string]*Processor
	closed bool
}

func NewProcessorPool(config rmqio.OutboundConfig, useTLS bool, getTLSConfig func() *tls.Config) *ProcessorPool {
	config.SetDefaultIfNotDefined()
	return &ProcessorPool{
		config:       config,
		getTLSConfig: getTLSConfig,
		useTLS:       useTLS,
		procs:        make(map[string]*Processor),
	}
}

func (p *ProcessorPool) Get(addr string) (*Processor, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		return nil, ErrProcessorClosed
	}
	if proc, ok := p.procs[addr]; ok {
		return proc, nil
	}
	ep := rmqio.ServiceEndpoint{Addr: addr, SSLEnabled: p.useTLS}
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	proc := NewProcessor(ep, p.config, p.getTLSConfig)
	proc.Start()
	p.procs[addr] = proc
	glog.V(2).Infof("processor created for %s", addr)
	return proc, nil
}

func (p *ProcessorPool) Invoke(ctx context.Context, addr string, request *proto.RemotingCommand) (*proto.RemotingCommand, error) {
	proc, err := p.Get(addr)
	if err != nil {
		return nil, err
	}
	return proc.Invoke(ctx, request)
}

func (p *ProcessorPool) InvokeOneway(ctx context.Context, addr string, request *proto.RemotingCommand) error {
	proc, err := p.Get(addr)
	if err != nil {
		return err
	}
	return proc.InvokeOneway(ctx, request)
}

func (p *ProcessorPool) Close() {
	p.mtx.Lock()
	procs := p.procs
	p.procs = make(map[string]*Processor)
	p.closed = true
	p.mtx.Unlock()
	for _, proc := range procs {
		proc.Close()
	}
}
