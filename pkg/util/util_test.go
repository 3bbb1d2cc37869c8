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

package util

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func RandomKey(s int) []byte {
	key := make([]byte, 16)
	r := uint32(((int64(s+1)*25214903917 + 11) >> 5) & 0x7fffffff)
	binary.BigEndian.PutUint32(key[0:], r)
	binary.BigEndian.PutUint32(key[4:], uint32(s))
	return key
}

func TestQueueIndexDistribution(t *testing.T) {
	const numQueues = 8
	var counts [numQueues]int

	total := 80000
	for i := 0; i < total; i++ {
		idx := GetQueueIndex(RandomKey(i), numQueues)
		if idx < 0 || idx >= numQueues {
			t.Fatalf("index out of range: %d", idx)
		}
		counts[idx]++
	}
	avg := float64(total) / float64(numQueues)
	for i, c := range counts {
		if pct := math.Abs(float64(c)-avg) / avg; pct >= 0.05 {
			t.Errorf("queue=%d count=%d pct=%v", i, c, pct)
		}
	}
}

func TestQueueIndexNoQueues(t *testing.T) {
	if idx := GetQueueIndex([]byte("k"), 0); idx != -1 {
		t.Errorf("expected -1, got %d", idx)
	}
}

func TestDurationFromToml(t *testing.T) {
	var conf struct {
		Timeout Duration
	}
	if _, err := toml.Decode(`Timeout = "1500ms"`, &conf); err != nil {
		t.Fatal(err)
	}
	if conf.Timeout.Duration != 1500*time.Millisecond {
		t.Errorf("got %v", conf.Timeout.Duration)
	}
	text, _ := conf.Timeout.MarshalText()
	if string(text) != "1.5s" {
		t.Errorf("got %s", text)
	}
}

func TestTimerWrapper(t *testing.T) {
	tw := NewTimerWrapper(time.Second)
	if tw.GetTimeoutCh() != nil {
		t.Fatal("stopped timer must have nil channel")
	}
	tw.Reset(10 * time.Millisecond)
	select {
	case <-tw.GetTimeoutCh():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	tw.Stop()
	if !tw.IsStopped() || !tw.Deadline().IsZero() {
		t.Error("expected stopped timer")
	}

	tw.Reset(time.Hour)
	tw.ResetIfEarlier(time.Now().Add(10 * time.Millisecond))
	if time.Until(tw.Deadline()) > time.Second {
		t.Error("expected deadline moved earlier")
	}
	tw.ResetIfEarlier(time.Now().Add(time.Hour))
	if time.Until(tw.Deadline()) > time.Second {
		t.Error("later deadline must not replace earlier one")
	}
	tw.Stop()
}

func TestToPrintableString(t *testing.T) {
	if got := ToPrintableString([]byte("ab\x00\x7fc~")); got != "ab..c~" {
		t.Errorf("got %q", got)
	}
	if ToPrintableString(nil) != "" {
		t.Error("expected empty string")
	}
}
