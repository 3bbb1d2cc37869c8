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
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

type PendingRequest struct {
	reqCtx   *RequestContext
	timeSent time.Time
}

// PendingTracker correlates responses with requests by opaque. It is owned
// by one connection goroutine and is not safe for concurrent use.
type PendingTracker struct {
	mapRequestsSent map[int32]*PendingRequest
	responseTimer   *util.TimerWrapper
}

func newPendingTracker() *PendingTracker {
	return &PendingTracker{
		mapRequestsSent: make(map[int32]*PendingRequest),
		responseTimer:   util.NewTimerWrapper(time.Second),
	}
}

func (p *PendingTracker) GetTimeoutCh() <-chan time.Time {
	return p.responseTimer.GetTimeoutCh()
}

func (p *PendingTracker) NumPending() int {
	return len(p.mapRequestsSent)
}

// OnRequestSent starts tracking reqCtx. A request whose opaque is already in
// flight is rejected and the earlier one is left untouched.
func (p *PendingTracker) OnRequestSent(reqCtx *RequestContext) bool {
	opaque := reqCtx.request.Opaque
	if _, found := p.mapRequestsSent[opaque]; found {
		glog.Warningf("duplicate opaque %d", opaque)
		reqCtx.ReplyError(&DuplicateOpaqueError{Opaque: opaque})
		return false
	}
	p.mapRequestsSent[opaque] = &PendingRequest{reqCtx: reqCtx, timeSent: time.Now()}
	p.responseTimer.ResetIfEarlier(reqCtx.deadline)
	return true
}

// OnTimeout fails every request whose deadline has passed and re-arms the
// timer for the earliest remaining one.
func (p *PendingTracker) OnTimeout(now time.Time) {
	p.responseTimer.Stop()
	var next time.Time
	for opaque, pr := range p.mapRequestsSent {
		if !pr.reqCtx.deadline.After(now) {
			if logging.LOG_DEBUG {
				glog.Infof("Timeout <- server: code=%d opaque=%d elapsed=%v",
					pr.reqCtx.request.Code, opaque, now.Sub(pr.timeSent))
			}
			pr.reqCtx.ReplyError(ErrResponseTimeout)
			delete(p.mapRequestsSent, opaque)
			continue
		}
		if next.IsZero() || pr.reqCtx.deadline.Before(next) {
			next = pr.reqCtx.deadline
		}
	}
	if !next.IsZero() {
		p.responseTimer.Reset(next.Sub(now))
	}
}

func (p *PendingTracker) OnResponseReceived(readerResp *ReaderResponse) {
	if readerResp.err != nil {
		p.responseTimer.Stop()
		p.ClearOnError(newIOError(readerResp.err))
		return
	}
	resp := readerResp.response
	if pending, found := p.mapRequestsSent[resp.Opaque]; found {
		delete(p.mapRequestsSent, resp.Opaque)
		pending.reqCtx.Reply(resp)
	} else {
		glog.Warningf("no pending request found. opaque=%d,code=%d", resp.Opaque, resp.Code)
	}
	if len(p.mapRequestsSent) == 0 {
		p.responseTimer.Stop()
	}
}

func (p *PendingTracker) ClearOnError(err error) {
	for k, v := range p.mapRequestsSent {
		v.reqCtx.ReplyError(err)
		delete(p.mapRequestsSent, k)
	}
}

// OnResponseReaderClosed fails every pending request with ErrReaderClosed
// and stops the timer.
func (p *PendingTracker) OnResponseReaderClosed() {
	p.responseTimer.Stop()
	p.ClearOnError(ErrReaderClosed)
}
