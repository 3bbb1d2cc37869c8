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
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	rmqio "github.com/kaixinbaba/rocketmq-go/pkg/io"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging/otel"
	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
)

type Connection struct {
	tracker          *PendingTracker
	conn             net.Conn
	chReaderResponse <-chan *ReaderResponse
	chReaderDone     chan struct{}
	addr             string
}

var (
	connCount int64
)

func (c *Connection) GetReqTimeoutCh() <-chan time.Time {
	if c.tracker == nil {
		return nil
	}
	return c.tracker.GetTimeoutCh()
}

func (c *Connection) Shutdown() {
	if c.conn != nil {
		close(c.chReaderDone)
		c.conn.Close()
		c.conn = nil
		otel.RecordCount(otel.ConnClose, []otel.Tags{{TagName: otel.Endpoint, TagValue: c.addr}})
		glog.V(2).Infof("Close connCount=%d", atomic.AddInt64(&connCount, -1))
	}
}

func startResponseReader(r io.Reader, bufSize int, maxFrameSize int, chanSize int, done <-chan struct{}) <-chan *ReaderResponse {
	chReaderResponse := make(chan *ReaderResponse, chanSize)
	go func() {
		defer close(chReaderResponse)
		br := bufio.NewReaderSize(r, bufSize)
		for {
			resp, err := proto.ReadCommand(br, maxFrameSize)
			var rr *ReaderResponse
			if err == nil {
				rr = NewReaderResponse(resp)
			} else {
				rr = NewErrorReaderResponse(err)
			}
			select {
			case chReaderResponse <- rr:
			case <-done:
				return
			}
			if err != nil {
				if err == io.EOF {
					glog.V(2).Info(err)
				} else {
					glog.Warning(err)
				}
				return
			}
		}
	}()
	return chReaderResponse
}

type requestProcessor struct {
	server       rmqio.ServiceEndpoint
	config       rmqio.OutboundConfig
	getTLSConfig func() *tls.Config
	active       *Connection
}

func (p *requestProcessor) connect() error {
	conn, err := rmqio.Connect(&p.server, p.config.ConnectTimeout.Duration, p.getTLSConfig)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	p.active = &Connection{
		conn:             conn,
		tracker:          newPendingTracker(),
		chReaderDone:     done,
		chReaderResponse: startResponseReader(conn, p.config.IOBufSize, p.config.MaxFrameSize, p.config.ReaderChanSize, done),
		addr:             p.server.Addr,
	}
	glog.V(2).Infof("Open connCount=%d", atomic.AddInt64(&connCount, 1))
	return nil
}

func (p *requestProcessor) closeActive(err error) {
	if p.active.tracker != nil {
		p.active.tracker.responseTimer.Stop()
		p.active.tracker.ClearOnError(err)
	}
	p.active.Shutdown()
	p.active = &Connection{}
}

func (p *requestProcessor) write(r *RequestContext) {
	req := r.GetRequest()
	if p.active.conn == nil {
		if err := p.connect(); err != nil {
			r.ReplyError(newIOError(err))
			return
		}
	}
	if req.IsOneway() {
		if err := p.writeFrame(req); err != nil {
			r.ReplyError(err)
			p.closeActive(err)
			return
		}
		r.Reply(nil)
		return
	}
	if !p.active.tracker.OnRequestSent(r) {
		return
	}
	if err := p.writeFrame(req); err != nil {
		// the tracker replies to r along with everything else in flight
		p.closeActive(err)
	}
}

func (p *requestProcessor) writeFrame(req *proto.RemotingCommand) error {
	conn := p.active.conn
	if p.config.WriteTimeout.Duration > 0 {
		conn.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout.Duration))
	}
	if logging.LOG_VERBOSE {
		glog.Infof("proc -> %s %s", p.server.Addr, req)
	}
	_, err := req.WriteTo(conn)
	return newIOError(err)
}

func doRequestProcess(p *requestProcessor, chDone <-chan struct{}, chDoneNotify chan<- struct{}, chRequest <-chan *RequestContext) {
	glog.V(2).Infof("Start request processor for %s", p.server.Addr)
	defer close(chDoneNotify)
	p.active = &Connection{}

	for {
		select {
		case <-chDone:
			glog.V(2).Infof("request processor for %s done", p.server.Addr)
			p.closeActive(ErrProcessorClosed)
			for {
				select {
				case r := <-chRequest:
					r.ReplyError(ErrProcessorClosed)
				default:
					return
				}
			}

		case now, ok := <-p.active.GetReqTimeoutCh():
			if ok {
				p.active.tracker.OnTimeout(now)
			}

		case r, ok := <-chRequest:
			if !ok {
				continue
			}
			p.write(r)

		case readerResp, ok := <-p.active.chReaderResponse:
			if !ok {
				glog.V(2).Info("active reader response channel closed")
				p.active.tracker.OnResponseReaderClosed()
				p.closeActive(ErrReaderClosed)
				continue
			}
			p.active.tracker.OnResponseReceived(readerResp)
			if readerResp.err != nil {
				p.closeActive(newIOError(readerResp.err))
			}
		}
	}
}
