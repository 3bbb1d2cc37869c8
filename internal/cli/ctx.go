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

	"github.com/kaixinbaba/rocketmq-go/pkg/proto"
)

// GetResponse() != nil and GetError() != nil are mutually exclusive
type IResponseContext interface {
	GetResponse() *proto.RemotingCommand
	GetError() error
	GetOpaque() int32
}

type RequestContext struct {
	request    *proto.RemotingCommand
	deadline   time.Time
	chResponse chan IResponseContext
}

type ResponseContext struct {
	resp *proto.RemotingCommand
}

type ErrResponseContext struct {
	opaque int32
	err    error
}

type ReaderResponse struct {
	response *proto.RemotingCommand
	err      error
}

func NewReaderResponse(resp *proto.RemotingCommand) *ReaderResponse {
	return &ReaderResponse{response: resp}
}

func NewErrorReaderResponse(err error) *ReaderResponse {
	return &ReaderResponse{err: err}
}

// NewRequestContext expects chResponse to have room for one reply.
func NewRequestContext(m *proto.RemotingCommand, deadline time.Time, chResponse chan IResponseContext) *RequestContext {
	return &RequestContext{
		request:    m,
		deadline:   deadline,
		chResponse: chResponse,
	}
}

func (r *ResponseContext) GetResponse() *proto.RemotingCommand {
	return r.resp
}

func (r *ResponseContext) GetOpaque() int32 {
	return r.resp.Opaque
}

func (r *ResponseContext) GetError() error {
	return nil
}

func (r *ErrResponseContext) GetResponse() *proto.RemotingCommand {
	return nil
}

func (r *ErrResponseContext) GetOpaque() int32 {
	return r.opaque
}

func (r *ErrResponseContext) GetError() error {
	return r.err
}

func (r *RequestContext) GetRequest() *proto.RemotingCommand {
	return r.request
}

func (r *RequestContext) Deadline() time.Time {
	return r.deadline
}

func (r *RequestContext) reply(c IResponseContext) {
	select {
	case r.chResponse <- c:
	default:
		glog.Warningf("response dropped, opaque=%d", r.request.Opaque)
	}
}

func (r *RequestContext) Reply(response *proto.RemotingCommand) {
	r.reply(&ResponseContext{response})
}

func (r *RequestContext) ReplyError(err error) {
	r.reply(&ErrResponseContext{r.request.Opaque, err})
}
