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

package proto

import (
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

const (
	LanguageOther   = "OTHER"
	ProtocolVersion = 431

	// Flag bits set by peers. The codec carries Flag verbatim.
	RPCResponse = 0x1
	RPCOneway   = 0x2

	maxPrettyBody = 64
)

type (
	Header struct {
		Code      int               `json:"code"`
		Language  string            `json:"language"`
		Version   int               `json:"version"`
		Opaque    int32             `json:"opaque"`
		Flag      int               `json:"flag"`
		Remark    string            `json:"remark"`
		ExtFields map[string]string `json:"extFields"`
	}

	RemotingCommand struct {
		Header
		Body []byte
	}

	// OpaqueGenerator hands out correlation ids. One instance is shared by all
	// connections of a client.
	OpaqueGenerator struct {
		next atomic.Int32
	}
)

func NewOpaqueGenerator() *OpaqueGenerator {
	return &OpaqueGenerator{}
}

// NewOpaqueGeneratorFrom starts the sequence at start instead of 0.
func NewOpaqueGeneratorFrom(start int32) *OpaqueGenerator {
	g := &OpaqueGenerator{}
	g.next.Store(start)
	return g
}

// Next returns the current value and advances the counter. The counter wraps
// from MaxInt32 to MinInt32.
func (g *OpaqueGenerator) Next() int32 {
	return g.next.Add(1) - 1
}

// NewCommand builds a command with the default language and version, drawing
// its opaque from gen.
func NewCommand(gen *OpaqueGenerator, code int, flag int, remark string, fields map[string]string, body []byte) *RemotingCommand {
	if fields == nil {
		fields = make(map[string]string)
	}
	return &RemotingCommand{
		Header: Header{
			Code:      code,
			Language:  LanguageOther,
			Version:   ProtocolVersion,
			Opaque:    gen.Next(),
			Flag:      flag,
			Remark:    remark,
			ExtFields: fields,
		},
		Body: body,
	}
}

func NewRequestCommand(gen *OpaqueGenerator, code RequestCode, fields map[string]string, body []byte) *RemotingCommand {
	return NewCommand(gen, int(code), 0, "", fields, body)
}

func NewOnewayCommand(gen *OpaqueGenerator, code RequestCode, fields map[string]string, body []byte) *RemotingCommand {
	return NewCommand(gen, int(code), RPCOneway, "", fields, body)
}

func (c *RemotingCommand) IsOneway() bool {
	return c.Flag&RPCOneway == RPCOneway
}

// NewResponseCommand answers request, keeping its opaque.
func NewResponseCommand(request *RemotingCommand, code ResponseCode, remark string, fields map[string]string, body []byte) *RemotingCommand {
	if fields == nil {
		fields = make(map[string]string)
	}
	return &RemotingCommand{
		Header: Header{
			Code:      int(code),
			Language:  LanguageOther,
			Version:   ProtocolVersion,
			Opaque:    request.Opaque,
			Flag:      RPCResponse,
			Remark:    remark,
			ExtFields: fields,
		},
		Body: body,
	}
}

func (c *RemotingCommand) GetExtField(key string) (string, bool) {
	if c.ExtFields == nil {
		return "", false
	}
	v, ok := c.ExtFields[key]
	return v, ok
}

func (c *RemotingCommand) GetExtFieldInt64(key string) (int64, error) {
	v, ok := c.GetExtField(key)
	if !ok {
		return 0, fmt.Errorf("ext field %s not found", key)
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *RemotingCommand) SetExtField(key, value string) {
	if c.ExtFields == nil {
		c.ExtFields = make(map[string]string)
	}
	c.ExtFields[key] = value
}

func (c *RemotingCommand) ResponseCode() ResponseCode {
	return ResponseCode(c.Code)
}

func (c *RemotingCommand) String() string {
	return fmt.Sprintf("code=%d,opaque=%d,flag=%d,remark=%s,ext=%v,body_len=%d",
		c.Code, c.Opaque, c.Flag, c.Remark, c.ExtFields, len(c.Body))
}

func (c *RemotingCommand) PrettyPrint(w io.Writer) {
	fmt.Fprintf(w, "RemotingCommand {\n")
	fmt.Fprintf(w, "  Code     : %d\n", c.Code)
	fmt.Fprintf(w, "  Language : %s\n", c.Language)
	fmt.Fprintf(w, "  Version  : %d\n", c.Version)
	fmt.Fprintf(w, "  Opaque   : %d\n", c.Opaque)
	fmt.Fprintf(w, "  Flag     : %d\n", c.Flag)
	fmt.Fprintf(w, "  Remark   : %s\n", c.Remark)
	for k, v := range c.ExtFields {
		fmt.Fprintf(w, "  Ext      : %s=%s\n", k, v)
	}
	fmt.Fprintf(w, "  BodyLen  : %d\n", len(c.Body))
	body := c.Body
	if len(body) > maxPrettyBody {
		body = body[:maxPrettyBody]
	}
	fmt.Fprintf(w, "  Body     : %s\n}\n", util.ToPrintableString(body))
}
