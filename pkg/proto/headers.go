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
	"strconv"
)

// Ext field names used by the request and response headers below.
const (
	FieldProducerGroup         = "producerGroup"
	FieldConsumerGroup         = "consumerGroup"
	FieldTopic                 = "topic"
	FieldDefaultTopic          = "defaultTopic"
	FieldDefaultTopicQueueNums = "defaultTopicQueueNums"
	FieldQueueId               = "queueId"
	FieldQueueOffset           = "queueOffset"
	FieldSysFlag               = "sysFlag"
	FieldBornTimestamp         = "bornTimestamp"
	FieldFlag                  = "flag"
	FieldProperties            = "properties"
	FieldReconsumeTimes        = "reconsumeTimes"
	FieldUnitMode              = "unitMode"
	FieldBatch                 = "batch"
	FieldMaxMsgNums            = "maxMsgNums"
	FieldCommitOffset          = "commitOffset"
	FieldSuspendTimeoutMillis  = "suspendTimeoutMillis"
	FieldSubscription          = "subscription"
	FieldSubVersion            = "subVersion"
	FieldMsgId                 = "msgId"
	FieldTransactionId         = "transactionId"
	FieldRegionId              = "MSG_REGION"
	FieldTraceOn               = "TRACE_ON"
	FieldSuggestWhichBrokerId  = "suggestWhichBrokerId"
	FieldNextBeginOffset       = "nextBeginOffset"
	FieldMinOffset             = "minOffset"
	FieldMaxOffset             = "maxOffset"
	FieldOffset                = "offset"
	FieldClientId              = "clientID"
)

type extReader struct {
	fields map[string]string
	err    error
}

func (r *extReader) str(key string) string {
	return r.fields[key]
}

func (r *extReader) int64(key string) int64 {
	v, ok := r.fields[key]
	if !ok || r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = err
	}
	return n
}

func (r *extReader) int32(key string) int32 {
	return int32(r.int64(key))
}

func (r *extReader) bool(key string) bool {
	v, ok := r.fields[key]
	if !ok || r.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = err
	}
	return b
}

func itoa32(n int32) string { return strconv.FormatInt(int64(n), 10) }
func itoa64(n int64) string { return strconv.FormatInt(n, 10) }

type SendMessageRequestHeader struct {
	ProducerGroup         string
	Topic                 string
	DefaultTopic          string
	DefaultTopicQueueNums int32
	QueueId               int32
	SysFlag               int32
	BornTimestamp         int64
	Flag                  int32
	Properties            string
	ReconsumeTimes        int32
	UnitMode              bool
	Batch                 bool
}

func (h *SendMessageRequestHeader) Encode() map[string]string {
	return map[string]string{
		FieldProducerGroup:         h.ProducerGroup,
		FieldTopic:                 h.Topic,
		FieldDefaultTopic:          h.DefaultTopic,
		FieldDefaultTopicQueueNums: itoa32(h.DefaultTopicQueueNums),
		FieldQueueId:               itoa32(h.QueueId),
		FieldSysFlag:               itoa32(h.SysFlag),
		FieldBornTimestamp:         itoa64(h.BornTimestamp),
		FieldFlag:                  itoa32(h.Flag),
		FieldProperties:            h.Properties,
		FieldReconsumeTimes:        itoa32(h.ReconsumeTimes),
		FieldUnitMode:              strconv.FormatBool(h.UnitMode),
		FieldBatch:                 strconv.FormatBool(h.Batch),
	}
}

func DecodeSendMessageRequestHeader(fields map[string]string) (*SendMessageRequestHeader, error) {
	r := &extReader{fields: fields}
	h := &SendMessageRequestHeader{
		ProducerGroup:         r.str(FieldProducerGroup),
		Topic:                 r.str(FieldTopic),
		DefaultTopic:          r.str(FieldDefaultTopic),
		DefaultTopicQueueNums: r.int32(FieldDefaultTopicQueueNums),
		QueueId:               r.int32(FieldQueueId),
		SysFlag:               r.int32(FieldSysFlag),
		BornTimestamp:         r.int64(FieldBornTimestamp),
		Flag:                  r.int32(FieldFlag),
		Properties:            r.str(FieldProperties),
		ReconsumeTimes:        r.int32(FieldReconsumeTimes),
		UnitMode:              r.bool(FieldUnitMode),
		Batch:                 r.bool(FieldBatch),
	}
	return h, r.err
}

type SendMessageResponseHeader struct {
	MsgId         string
	QueueId       int32
	QueueOffset   int64
	TransactionId string
	RegionId      string
	TraceOn       bool
}

func (h *SendMessageResponseHeader) Encode() map[string]string {
	m := map[string]string{
		FieldMsgId:       h.MsgId,
		FieldQueueId:     itoa32(h.QueueId),
		FieldQueueOffset: itoa64(h.QueueOffset),
		FieldTraceOn:     strconv.FormatBool(h.TraceOn),
	}
	if h.TransactionId != "" {
		m[FieldTransactionId] = h.TransactionId
	}
	if h.RegionId != "" {
		m[FieldRegionId] = h.RegionId
	}
	return m
}

func DecodeSendMessageResponseHeader(fields map[string]string) (*SendMessageResponseHeader, error) {
	r := &extReader{fields: fields}
	h := &SendMessageResponseHeader{
		MsgId:         r.str(FieldMsgId),
		QueueId:       r.int32(FieldQueueId),
		QueueOffset:   r.int64(FieldQueueOffset),
		TransactionId: r.str(FieldTransactionId),
		RegionId:      r.str(FieldRegionId),
		TraceOn:       r.bool(FieldTraceOn),
	}
	return h, r.err
}

type PullMessageRequestHeader struct {
	ConsumerGroup        string
	Topic                string
	QueueId              int32
	QueueOffset          int64
	MaxMsgNums           int32
	SysFlag              int32
	CommitOffset         int64
	SuspendTimeoutMillis int64
	Subscription         string
	SubVersion           int64
}

func (h *PullMessageRequestHeader) Encode() map[string]string {
	return map[string]string{
		FieldConsumerGroup:        h.ConsumerGroup,
		FieldTopic:                h.Topic,
		FieldQueueId:              itoa32(h.QueueId),
		FieldQueueOffset:          itoa64(h.QueueOffset),
		FieldMaxMsgNums:           itoa32(h.MaxMsgNums),
		FieldSysFlag:              itoa32(h.SysFlag),
		FieldCommitOffset:         itoa64(h.CommitOffset),
		FieldSuspendTimeoutMillis: itoa64(h.SuspendTimeoutMillis),
		FieldSubscription:         h.Subscription,
		FieldSubVersion:           itoa64(h.SubVersion),
	}
}

func DecodePullMessageRequestHeader(fields map[string]string) (*PullMessageRequestHeader, error) {
	r := &extReader{fields: fields}
	h := &PullMessageRequestHeader{
		ConsumerGroup:        r.str(FieldConsumerGroup),
		Topic:                r.str(FieldTopic),
		QueueId:              r.int32(FieldQueueId),
		QueueOffset:          r.int64(FieldQueueOffset),
		MaxMsgNums:           r.int32(FieldMaxMsgNums),
		SysFlag:              r.int32(FieldSysFlag),
		CommitOffset:         r.int64(FieldCommitOffset),
		SuspendTimeoutMillis: r.int64(FieldSuspendTimeoutMillis),
		Subscription:         r.str(FieldSubscription),
		SubVersion:           r.int64(FieldSubVersion),
	}
	return h, r.err
}

type PullMessageResponseHeader struct {
	SuggestWhichBrokerId int64
	NextBeginOffset      int64
	MinOffset            int64
	MaxOffset            int64
}

func (h *PullMessageResponseHeader) Encode() map[string]string {
	return map[string]string{
		FieldSuggestWhichBrokerId: itoa64(h.SuggestWhichBrokerId),
		FieldNextBeginOffset:      itoa64(h.NextBeginOffset),
		FieldMinOffset:            itoa64(h.MinOffset),
		FieldMaxOffset:            itoa64(h.MaxOffset),
	}
}

func DecodePullMessageResponseHeader(fields map[string]string) (*PullMessageResponseHeader, error) {
	r := &extReader{fields: fields}
	h := &PullMessageResponseHeader{
		SuggestWhichBrokerId: r.int64(FieldSuggestWhichBrokerId),
		NextBeginOffset:      r.int64(FieldNextBeginOffset),
		MinOffset:            r.int64(FieldMinOffset),
		MaxOffset:            r.int64(FieldMaxOffset),
	}
	return h, r.err
}

// QueueOffsetRequestHeader is carried by GetMaxOffset and GetMinOffset.
type QueueOffsetRequestHeader struct {
	Topic   string
	QueueId int32
}

func (h *QueueOffsetRequestHeader) Encode() map[string]string {
	return map[string]string{
		FieldTopic:   h.Topic,
		FieldQueueId: itoa32(h.QueueId),
	}
}

func DecodeQueueOffsetRequestHeader(fields map[string]string) (*QueueOffsetRequestHeader, error) {
	r := &extReader{fields: fields}
	h := &QueueOffsetRequestHeader{
		Topic:   r.str(FieldTopic),
		QueueId: r.int32(FieldQueueId),
	}
	return h, r.err
}

func RouteInfoRequestFields(topic string) map[string]string {
	return map[string]string{FieldTopic: topic}
}
