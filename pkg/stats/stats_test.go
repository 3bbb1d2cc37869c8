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

package stats

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	for i := 1; i <= 100; i++ {
		s.Put(RequestTypeSend, time.Duration(i)*time.Millisecond, nil)
	}
	s.Put(RequestTypePull, 5*time.Millisecond, errors.New("timeout"))

	send := s.Get(RequestTypeSend)
	if send.NumRequests != 100 || send.NumErrors != 0 {
		t.Errorf("send stats %+v", send)
	}
	within := func(got, want time.Duration) bool {
		d := got - want
		if d < 0 {
			d = -d
		}
		return d <= want/100
	}
	if !within(send.P50Latency, 50*time.Millisecond) || !within(send.MaxLatency, 100*time.Millisecond) {
		t.Errorf("percentiles p50=%v max=%v", send.P50Latency, send.MaxLatency)
	}
	if !within(send.AvgLatency, 50500*time.Microsecond) {
		t.Errorf("avg %v", send.AvgLatency)
	}

	all := s.All()
	if all.NumRequests != 101 || all.NumErrors != 1 || s.GetNumRequests() != 101 {
		t.Errorf("all stats %+v", all)
	}

	var buf bytes.Buffer
	s.PrettyPrint(&buf)
	out := buf.String()
	if !strings.Contains(out, "Send") || !strings.Contains(out, "Pull") || strings.Contains(out, "SendOneway") {
		t.Errorf("unexpected report:\n%s", out)
	}

	s.Reset()
	if s.GetNumRequests() != 0 || s.Get(RequestTypeSend).NumRequests != 0 {
		t.Error("reset did not clear")
	}
}

func TestEmptyStats(t *testing.T) {
	var s Statistics
	st := s.Get(RequestTypeSendAsync)
	if st.NumRequests != 0 || st.AvgLatency != 0 || st.Throughput != 0 {
		t.Errorf("unexpected %+v", st)
	}
	if (s.Get(kNumRequestTypes) != StatsData{}) {
		t.Error("unknown type must be empty")
	}
}

func TestConcurrentPut(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Put(RequestTypeSendAsync, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()
	if n := s.Get(RequestTypeSendAsync).NumRequests; n != 800 {
		t.Errorf("got %d", n)
	}
}

func TestRequestTypeString(t *testing.T) {
	if RequestTypeSendOneway.String() != "SendOneway" || RequestType(9).String() != "RequestType(9)" {
		t.Error("names")
	}
}
