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

package route

import (
	"testing"
)

const sampleRoute = `{"orderTopicConf":"","queueDatas":[` +
	`{"brokerName":"broker-b","readQueueNums":4,"writeQueueNums":4,"perm":6,"topicSynFlag":0},` +
	`{"brokerName":"broker-a","readQueueNums":4,"writeQueueNums":2,"perm":6,"topicSynFlag":0},` +
	`{"brokerName":"broker-c","readQueueNums":4,"writeQueueNums":4,"perm":4,"topicSynFlag":0},` +
	`{"brokerName":"broker-d","readQueueNums":4,"writeQueueNums":4,"perm":6,"topicSynFlag":0}],` +
	`"brokerDatas":[` +
	`{"cluster":"c1","brokerName":"broker-a","brokerAddrs":{0:"127.0.0.1:10911",1:"127.0.0.1:10921"}},` +
	`{"cluster":"c1","brokerName":"broker-b","brokerAddrs":{0:"127.0.0.2:10911"}},` +
	`{"cluster":"c1","brokerName":"broker-c","brokerAddrs":{0:"127.0.0.3:10911"}},` +
	`{"cluster":"c1","brokerName":"broker-d","brokerAddrs":{1:"127.0.0.4:10921"}}]}`

func TestDecodeUnquotedKeys(t *testing.T) {
	r, err := DecodeTopicRouteData([]byte(sampleRoute))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.QueueDataList) != 4 || len(r.BrokerDataList) != 4 {
		t.Fatalf("got %d queue datas %d broker datas", len(r.QueueDataList), len(r.BrokerDataList))
	}
	a := r.FindBroker("broker-a")
	if a == nil || a.MasterAddr() != "127.0.0.1:10911" || a.BrokerAddresses[1] != "127.0.0.1:10921" {
		t.Errorf("broker-a: %+v", a)
	}
	d := r.FindBroker("broker-d")
	if d.MasterAddr() != "" || d.SelectAddr() != "127.0.0.4:10921" {
		t.Errorf("broker-d: %+v", d)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, body := range []string{"", "{", `{"queueDatas":7}`} {
		if _, err := DecodeTopicRouteData([]byte(body)); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}

func TestToPublishInfo(t *testing.T) {
	r, err := DecodeTopicRouteData([]byte(sampleRoute))
	if err != nil {
		t.Fatal(err)
	}
	info := r.ToPublishInfo("orders")
	if !info.Ok() || info.OrderTopic {
		t.Fatalf("unexpected %s", info)
	}
	// broker-c is read only and broker-d has no master.
	want := []struct {
		broker string
		qid    int
	}{
		{"broker-a", 0}, {"broker-a", 1},
		{"broker-b", 0}, {"broker-b", 1}, {"broker-b", 2}, {"broker-b", 3},
	}
	if len(info.MessageQueues) != len(want) {
		t.Fatalf("got %d queues", len(info.MessageQueues))
	}
	for i, w := range want {
		mq := info.MessageQueues[i]
		if mq.Topic != "orders" || mq.BrokerName != w.broker || mq.QueueId != w.qid {
			t.Errorf("queue %d: %s", i, mq)
		}
	}

	if subs := r.ToSubscribeInfo("orders"); len(subs) != 16 {
		t.Errorf("got %d subscribe queues", len(subs))
	}
}

func TestOrderTopicConf(t *testing.T) {
	r := &TopicRouteData{OrderTopicConf: "broker-a:2;broker-b:1;bad"}
	info := r.ToPublishInfo("t")
	if !info.OrderTopic || len(info.MessageQueues) != 3 || info.MessageQueues[2].BrokerName != "broker-b" {
		t.Errorf("unexpected %s", info)
	}
}

func TestCapAndChanged(t *testing.T) {
	r, _ := DecodeTopicRouteData([]byte(sampleRoute))
	c := r.Clone()
	if r.Changed(c) {
		t.Error("clone must compare equal")
	}
	c.QueueDataList[0], c.QueueDataList[1] = c.QueueDataList[1], c.QueueDataList[0]
	if r.Changed(c) {
		t.Error("order must not matter")
	}
	c.CapQueueNums(1)
	if !r.Changed(c) {
		t.Error("capped route must differ")
	}
	for _, qd := range c.QueueDataList {
		if qd.WriteQueueNums != 1 || qd.ReadQueueNums != 1 {
			t.Errorf("not capped: %+v", qd)
		}
	}
	if r.QueueDataList[0].WriteQueueNums != 4 {
		t.Error("cap must not touch the original")
	}
	if !r.Changed(nil) {
		t.Error("nil is a change")
	}
}
