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
Package route holds the topic route model returned by name servers and the
publish info derived from it.
*/
package route

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/message"
)

const (
	PermPriority = 0x1 << 3
	PermRead     = 0x1 << 2
	PermWrite    = 0x1 << 1
	PermInherit  = 0x1 << 0

	MasterId int64 = 0
)

func IsWriteable(perm int) bool { return perm&PermWrite == PermWrite }
func IsReadable(perm int) bool  { return perm&PermRead == PermRead }

type QueueData struct {
	BrokerName     string `json:"brokerName"`
	ReadQueueNums  int    `json:"readQueueNums"`
	WriteQueueNums int    `json:"writeQueueNums"`
	Perm           int    `json:"perm"`
	TopicSynFlag   int    `json:"topicSynFlag"`
}

type BrokerData struct {
	Cluster         string           `json:"cluster"`
	BrokerName      string           `json:"brokerName"`
	BrokerAddresses map[int64]string `json:"brokerAddrs"`
}

func (b *BrokerData) MasterAddr() string {
	return b.BrokerAddresses[MasterId]
}

// SelectAddr prefers the master and falls back to the lowest numbered slave.
func (b *BrokerData) SelectAddr() string {
	if addr := b.MasterAddr(); addr != "" {
		return addr
	}
	ids := make([]int64, 0, len(b.BrokerAddresses))
	for id := range b.BrokerAddresses {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return b.BrokerAddresses[ids[0]]
}

type TopicRouteData struct {
	OrderTopicConf string        `json:"orderTopicConf,omitempty"`
	QueueDataList  []*QueueData  `json:"queueDatas"`
	BrokerDataList []*BrokerData `json:"brokerDatas"`
}

// Name servers write map keys such as brokerAddrs ids without quotes.
var unquotedIntKey = regexp.MustCompile(`([{,])\s*(-?\d+)\s*:`)

func DecodeTopicRouteData(body []byte) (*TopicRouteData, error) {
	if len(body) == 0 {
		return nil, errors.NewFramingError("empty topic route body", nil)
	}
	fixed := unquotedIntKey.ReplaceAll(body, []byte(`$1"$2":`))
	data := &TopicRouteData{}
	if err := json.Unmarshal(fixed, data); err != nil {
		return nil, errors.NewFramingError("decode topic route", err)
	}
	return data, nil
}

func (r *TopicRouteData) Encode() ([]byte, error) {
	return json.Marshal(r)
}

func (r *TopicRouteData) FindBroker(brokerName string) *BrokerData {
	for _, b := range r.BrokerDataList {
		if b.BrokerName == brokerName {
			return b
		}
	}
	return nil
}

func (r *TopicRouteData) Clone() *TopicRouteData {
	c := &TopicRouteData{OrderTopicConf: r.OrderTopicConf}
	for _, q := range r.QueueDataList {
		qc := *q
		c.QueueDataList = append(c.QueueDataList, &qc)
	}
	for _, b := range r.BrokerDataList {
		bc := &BrokerData{Cluster: b.Cluster, BrokerName: b.BrokerName, BrokerAddresses: make(map[int64]string, len(b.BrokerAddresses))}
		for id, addr := range b.BrokerAddresses {
			bc.BrokerAddresses[id] = addr
		}
		c.BrokerDataList = append(c.BrokerDataList, bc)
	}
	return c
}

// Changed reports whether other describes a different topology. Queue and
// broker order does not matter.
func (r *TopicRouteData) Changed(other *TopicRouteData) bool {
	if other == nil {
		return true
	}
	a, b := r.Clone(), other.Clone()
	a.sort()
	b.sort()
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return string(ea) != string(eb)
}

func (r *TopicRouteData) sort() {
	sort.Slice(r.QueueDataList, func(i, j int) bool {
		return r.QueueDataList[i].BrokerName < r.QueueDataList[j].BrokerName
	})
	sort.Slice(r.BrokerDataList, func(i, j int) bool {
		return r.BrokerDataList[i].BrokerName < r.BrokerDataList[j].BrokerName
	})
}

type TopicPublishInfo struct {
	OrderTopic          bool
	HaveTopicRouterInfo bool
	MessageQueues       []*message.MessageQueue
	RouteData           *TopicRouteData
	UpdatedAt           time.Time
}

// Ok reports whether there is at least one queue to send to.
func (p *TopicPublishInfo) Ok() bool {
	return p != nil && len(p.MessageQueues) > 0
}

// ToPublishInfo lists the writable queues of topic on brokers that have a
// master. An order topic conf of the form "broker-a:4;broker-b:4" overrides
// the queue data.
func (r *TopicRouteData) ToPublishInfo(topic string) *TopicPublishInfo {
	info := &TopicPublishInfo{
		RouteData:           r,
		HaveTopicRouterInfo: true,
		UpdatedAt:           time.Now(),
	}

	if r.OrderTopicConf != "" {
		info.OrderTopic = true
		for _, item := range strings.Split(r.OrderTopicConf, ";") {
			kv := strings.SplitN(item, ":", 2)
			if len(kv) != 2 {
				continue
			}
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				continue
			}
			for i := 0; i < n; i++ {
				info.MessageQueues = append(info.MessageQueues,
					&message.MessageQueue{Topic: topic, BrokerName: kv[0], QueueId: i})
			}
		}
		return info
	}

	qds := make([]*QueueData, len(r.QueueDataList))
	copy(qds, r.QueueDataList)
	sort.SliceStable(qds, func(i, j int) bool { return qds[i].BrokerName < qds[j].BrokerName })

	for _, qd := range qds {
		if !IsWriteable(qd.Perm) {
			continue
		}
		broker := r.FindBroker(qd.BrokerName)
		if broker == nil || broker.MasterAddr() == "" {
			continue
		}
		for i := 0; i < qd.WriteQueueNums; i++ {
			info.MessageQueues = append(info.MessageQueues,
				&message.MessageQueue{Topic: topic, BrokerName: qd.BrokerName, QueueId: i})
		}
	}
	return info
}

// ToSubscribeInfo lists the readable queues of topic.
func (r *TopicRouteData) ToSubscribeInfo(topic string) []*message.MessageQueue {
	var mqs []*message.MessageQueue
	for _, qd := range r.QueueDataList {
		if !IsReadable(qd.Perm) {
			continue
		}
		for i := 0; i < qd.ReadQueueNums; i++ {
			mqs = append(mqs, &message.MessageQueue{Topic: topic, BrokerName: qd.BrokerName, QueueId: i})
		}
	}
	return mqs
}

// CapQueueNums limits every queue data to at most n write and read queues.
// Routes borrowed from the create-topic key use it to apply the producer's
// default queue number.
func (r *TopicRouteData) CapQueueNums(n int) {
	for _, qd := range r.QueueDataList {
		if qd.WriteQueueNums > n {
			qd.WriteQueueNums = n
		}
		if qd.ReadQueueNums > n {
			qd.ReadQueueNums = n
		}
	}
}

func (p *TopicPublishInfo) String() string {
	return fmt.Sprintf("TopicPublishInfo [orderTopic=%v, queues=%d, haveRoute=%v]",
		p.OrderTopic, len(p.MessageQueues), p.HaveTopicRouterInfo)
}
