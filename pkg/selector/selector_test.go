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

package selector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/kaixinbaba/rocketmq-go/pkg/message"
)

func queues(topic string, n int) []*message.MessageQueue {
	mqs := make([]*message.MessageQueue, n)
	for i := range mqs {
		mqs[i] = &message.MessageQueue{Topic: topic, BrokerName: "broker-a", QueueId: i}
	}
	return mqs
}

func TestRoundRobinSequence(t *testing.T) {
	s := NewRoundRobin()
	mqs := queues("t", 4)
	msg := message.NewMessage("t", nil)
	want := []int{0, 1, 2, 3, 0}
	for i, w := range want {
		if got := s.Select(mqs, msg); got != w {
			t.Errorf("call %d: got %d want %d", i, got, w)
		}
	}
}

func TestRoundRobinTopicIsolation(t *testing.T) {
	s := NewRoundRobin()
	a, b := message.NewMessage("a", nil), message.NewMessage("b", nil)
	mqs := queues("x", 3)
	s.Select(mqs, a)
	s.Select(mqs, a)
	if got := s.Select(mqs, b); got != 0 {
		t.Errorf("topic b should start at 0, got %d", got)
	}
	if got := s.Select(mqs, a); got != 2 {
		t.Errorf("topic a should continue at 2, got %d", got)
	}
}

func TestRoundRobinFairnessConcurrent(t *testing.T) {
	s := NewRoundRobin()
	const n, workers, perWorker = 5, 10, 1000
	mqs := queues("t", n)
	msg := message.NewMessage("t", nil)

	counts := make([]int, n)
	var mtx sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, n)
			for i := 0; i < perWorker; i++ {
				local[s.Select(mqs, msg)]++
			}
			mtx.Lock()
			for i, c := range local {
				counts[i] += c
			}
			mtx.Unlock()
		}()
	}
	wg.Wait()
	for i, c := range counts {
		if c != workers*perWorker/n {
			t.Errorf("queue %d selected %d times", i, c)
		}
	}
}

func TestEmptyQueues(t *testing.T) {
	msg := message.NewMessage("t", nil)
	for _, s := range []QueueSelector{NewRoundRobin(), NewHash(), NewRandom()} {
		if got := s.Select(nil, msg); got != -1 {
			t.Errorf("%T: got %d", s, got)
		}
	}
}

func TestHashStable(t *testing.T) {
	s := NewHash()
	mqs := queues("t", 8)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("user-%d", i)
		msg := message.NewMessage("t", nil).WithShardingKey(key)
		first := s.Select(mqs, msg)
		if first < 0 || first >= len(mqs) {
			t.Fatalf("out of range %d", first)
		}
		for j := 0; j < 5; j++ {
			if got := s.Select(mqs, msg); got != first {
				t.Errorf("key %s moved from %d to %d", key, first, got)
			}
		}
	}

	byKeys := message.NewMessage("t", nil).WithKeys("order-1")
	if s.Select(mqs, byKeys) != s.Select(mqs, byKeys) {
		t.Error("keys fallback must be stable")
	}

	plain := message.NewMessage("t", nil)
	if a, b := s.Select(mqs, plain), s.Select(mqs, plain); a != 0 || b != 1 {
		t.Errorf("expected round robin fallback, got %d %d", a, b)
	}
}

func TestRandomInRange(t *testing.T) {
	s := NewRandom()
	mqs := queues("t", 3)
	msg := message.NewMessage("t", nil)
	for i := 0; i < 100; i++ {
		if got := s.Select(mqs, msg); got < 0 || got >= 3 {
			t.Fatalf("out of range %d", got)
		}
	}
}
