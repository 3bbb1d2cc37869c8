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
Package selector picks the queue a message is sent to.

Selectors are safe for concurrent use. Select returns -1 when there are no
queues, which callers treat as no route.
*/
package selector

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/message"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

type QueueSelector interface {
	Select(mqs []*message.MessageQueue, msg *message.Message) int
}

// RoundRobin keeps one counter per topic, created at zero on first use.
type RoundRobin struct {
	counters sync.Map // topic -> *atomic.Uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (s *RoundRobin) counter(topic string) *atomic.Uint64 {
	if c, ok := s.counters.Load(topic); ok {
		return c.(*atomic.Uint64)
	}
	c, _ := s.counters.LoadOrStore(topic, new(atomic.Uint64))
	return c.(*atomic.Uint64)
}

func (s *RoundRobin) Select(mqs []*message.MessageQueue, msg *message.Message) int {
	n := len(mqs)
	if n == 0 {
		return -1
	}
	return int((s.counter(msg.Topic).Add(1) - 1) % uint64(n))
}

// Hash routes messages with the same sharding key (or keys) to the same
// queue. Messages with neither fall back to round robin.
type Hash struct {
	fallback *RoundRobin
}

func NewHash() *Hash {
	return &Hash{fallback: NewRoundRobin()}
}

func (s *Hash) Select(mqs []*message.MessageQueue, msg *message.Message) int {
	if len(mqs) == 0 {
		return -1
	}
	key := msg.GetShardingKey()
	if key == "" {
		key = msg.GetKeys()
	}
	if key == "" {
		return s.fallback.Select(mqs, msg)
	}
	return util.GetQueueIndex([]byte(key), len(mqs))
}

type Random struct {
	mtx sync.Mutex
	rnd *rand.Rand
}

func NewRandom() *Random {
	return &Random{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *Random) Select(mqs []*message.MessageQueue, msg *message.Message) int {
	if len(mqs) == 0 {
		return -1
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.rnd.Intn(len(mqs))
}
