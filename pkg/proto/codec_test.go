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
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

func checkRoundTrip(t *testing.T, cmd *RemotingCommand) {
	t.Helper()
	raw, err := cmd.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(cmd.Header, decoded.Header) {
		t.Errorf("header mismatch\n got: %+v\nwant: %+v", decoded.Header, cmd.Header)
	}
	if !bytes.Equal(cmd.Body, decoded.Body) {
		t.Errorf("body mismatch: got %q want %q", decoded.Body, cmd.Body)
	}
}

func TestRemotingCommandEncodeDecode(t *testing.T) {
	gen := NewOpaqueGenerator()
	fields := map[string]string{
		"messageId": "123",
		"offset":    "456",
	}
	cmd := NewCommand(gen, 10, 0, "remark", fields, []byte("Hello World"))
	checkRoundTrip(t, cmd)
}

func TestRoundTripVariants(t *testing.T) {
	gen := NewOpaqueGenerator()
	tests := []struct {
		name   string
		remark string
		fields map[string]string
		body   []byte
	}{
		{"empty", "", nil, nil},
		{"emptyExtFields", "r", map[string]string{}, []byte{1, 2, 3}},
		{"emptyBody", "r", map[string]string{"k": "v"}, nil},
		{"unicodeRemark", "备注 ✓ <&>", map[string]string{"キー": "値"}, []byte("x")},
		{"binaryBody", "", map[string]string{"a": ""}, []byte{0, 0xff, 0x10, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRoundTrip(t, NewCommand(gen, 11, 1, tt.remark, tt.fields, tt.body))
		})
	}
}

func TestDefaults(t *testing.T) {
	cmd := NewRequestCommand(NewOpaqueGenerator(), RequestCodeGetRouteInfoByTopic, nil, nil)
	if cmd.Language != "OTHER" || cmd.Version != 431 || cmd.Opaque != 0 {
		t.Errorf("unexpected defaults: %+v", cmd.Header)
	}
	if cmd.ExtFields == nil {
		t.Error("ext fields must not be nil")
	}
}

func TestLengthFields(t *testing.T) {
	cmd := NewCommand(NewOpaqueGenerator(), 10, 0, "", map[string]string{"a": "b"}, []byte("body"))
	raw, err := cmd.Encode()
	if err != nil {
		t.Fatal(err)
	}
	total := binary.BigEndian.Uint32(raw[0:])
	headerLen := binary.BigEndian.Uint32(raw[4:])
	if int(total) != len(raw)-4 {
		t.Errorf("total length %d, frame has %d bytes after length", total, len(raw)-4)
	}
	if int(total) != 4+int(headerLen)+len("body") {
		t.Errorf("total length %d != 4 + %d + 4", total, headerLen)
	}
	if !bytes.HasSuffix(raw, []byte("body")) {
		t.Error("body must trail the header")
	}
}

func isFramingError(err error) bool {
	var fe *errors.FramingError
	return stderrors.As(err, &fe)
}

func TestDecodeErrors(t *testing.T) {
	cmd := NewCommand(NewOpaqueGenerator(), 10, 0, "", map[string]string{"a": "b"}, []byte("body"))
	raw, _ := cmd.Encode()

	badHeader := make([]byte, 8+3)
	binary.BigEndian.PutUint32(badHeader[0:], 4+3)
	binary.BigEndian.PutUint32(badHeader[4:], 3)
	copy(badHeader[8:], "{x]")

	headerTooLong := append([]byte(nil), raw...)
	binary.BigEndian.PutUint32(headerTooLong[4:], uint32(len(raw)))

	serializeType := append([]byte(nil), raw...)
	serializeType[4] = 1

	tests := []struct {
		name string
		buf  []byte
	}{
		{"nil", nil},
		{"shortPrefix", raw[:6]},
		{"truncatedHeader", raw[:12]},
		{"truncatedBody", raw[:len(raw)-1]},
		{"badJSON", badHeader},
		{"headerLongerThanFrame", headerTooLong},
		{"binarySerializeType", serializeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			if err == nil {
				t.Fatal("expected error")
			}
			if !isFramingError(err) {
				t.Errorf("expected FramingError, got %T: %v", err, err)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	cmd := NewCommand(NewOpaqueGenerator(), 10, 0, "", nil, []byte("abc"))
	raw, _ := cmd.Encode()
	decoded, err := Decode(append(raw, 'z', 'z'))
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded.Body) != "abc" {
		t.Errorf("got body %q", decoded.Body)
	}
}

func TestReadWriteStream(t *testing.T) {
	gen := NewOpaqueGenerator()
	var buf bytes.Buffer
	var sent []*RemotingCommand
	for i := 0; i < 3; i++ {
		cmd := NewCommand(gen, 10+i, 0, "r", map[string]string{"i": string(rune('a' + i))}, bytes.Repeat([]byte{byte(i)}, i))
		if _, err := cmd.WriteTo(&buf); err != nil {
			t.Fatal(err)
		}
		sent = append(sent, cmd)
	}
	for _, want := range sent {
		got, err := ReadCommand(&buf, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got.Header, want.Header) || !bytes.Equal(got.Body, want.Body) {
			t.Errorf("got %s want %s", got, want)
		}
	}
	if _, err := ReadCommand(&buf, 0); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadCommandLimits(t *testing.T) {
	cmd := NewCommand(NewOpaqueGenerator(), 10, 0, "", nil, make([]byte, 128))
	raw, _ := cmd.Encode()

	if _, err := ReadCommand(bytes.NewReader(raw), 64); !isFramingError(err) {
		t.Errorf("expected FramingError for oversized frame, got %v", err)
	}
	if _, err := ReadCommand(bytes.NewReader(raw[:20]), 0); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestOpaqueMonotonic(t *testing.T) {
	gen := NewOpaqueGenerator()
	prev := int32(-1)
	for i := 0; i < 1000; i++ {
		cmd := NewRequestCommand(gen, RequestCodeSendMessage, nil, nil)
		if cmd.Opaque <= prev {
			t.Fatalf("opaque not increasing: %d after %d", cmd.Opaque, prev)
		}
		prev = cmd.Opaque
	}
}

func TestOpaqueUniqueConcurrent(t *testing.T) {
	gen := NewOpaqueGenerator()
	const workers, perWorker = 8, 500
	ids := make(chan int32, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- NewRequestCommand(gen, RequestCodeSendMessage, nil, nil).Opaque
			}
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[int32]bool, workers*perWorker)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate opaque %d", id)
		}
		seen[id] = true
	}
}

func TestOpaqueWraparound(t *testing.T) {
	gen := NewOpaqueGeneratorFrom(math.MaxInt32)
	if v := gen.Next(); v != math.MaxInt32 {
		t.Errorf("got %d", v)
	}
	if v := gen.Next(); v != math.MinInt32 {
		t.Errorf("expected wrap to MinInt32, got %d", v)
	}
}

func TestResponseKeepsOpaque(t *testing.T) {
	gen := NewOpaqueGeneratorFrom(77)
	req := NewRequestCommand(gen, RequestCodeSendMessage, nil, nil)
	resp := NewResponseCommand(req, ResponseCodeSuccess, "", map[string]string{"queueOffset": "12"}, nil)
	if resp.Opaque != 77 {
		t.Errorf("got opaque %d", resp.Opaque)
	}
	if off, err := resp.GetExtFieldInt64("queueOffset"); err != nil || off != 12 {
		t.Errorf("got %d %v", off, err)
	}
	if _, err := resp.GetExtFieldInt64("missing"); err == nil {
		t.Error("expected error for missing field")
	}
}

func TestPrettyPrint(t *testing.T) {
	body := append([]byte("hello\x00"), bytes.Repeat([]byte("x"), 100)...)
	cmd := NewRequestCommand(NewOpaqueGeneratorFrom(5), RequestCodePullMessage, map[string]string{"topic": "t"}, body)
	var buf bytes.Buffer
	cmd.PrettyPrint(&buf)
	out := buf.String()
	for _, want := range []string{"Code     : 11", "Opaque   : 5", "Ext      : topic=t", "BodyLen  : 106", "Body     : hello."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 60)) {
		t.Error("body not truncated")
	}
}

func TestOnewayFlag(t *testing.T) {
	gen := NewOpaqueGenerator()
	if NewRequestCommand(gen, RequestCodeSendMessage, nil, nil).IsOneway() {
		t.Error("plain request marked oneway")
	}
	cmd := NewOnewayCommand(gen, RequestCodeSendMessage, nil, nil)
	if !cmd.IsOneway() {
		t.Error("oneway flag not set")
	}
	raw, _ := cmd.Encode()
	decoded, err := Decode(raw)
	if err != nil || decoded.Flag != RPCOneway {
		t.Errorf("flag lost: %v %v", decoded, err)
	}
}

func TestSendMessageHeaders(t *testing.T) {
	req := &SendMessageRequestHeader{
		ProducerGroup:         "pg",
		Topic:                 "orders",
		DefaultTopic:          "TBW102",
		DefaultTopicQueueNums: 4,
		QueueId:               3,
		SysFlag:               1,
		BornTimestamp:         1700000000000,
		Properties:            "WAIT\x01true\x02",
	}
	got, err := DecodeSendMessageRequestHeader(req.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if *got != *req {
		t.Errorf("got %+v want %+v", got, req)
	}

	if _, err := DecodeSendMessageResponseHeader(map[string]string{FieldQueueOffset: "x"}); err == nil {
		t.Error("expected error for bad queue offset")
	}
	resp, err := DecodeSendMessageResponseHeader(map[string]string{FieldMsgId: "ID", FieldQueueId: "2"})
	if err != nil || resp.MsgId != "ID" || resp.QueueId != 2 || resp.QueueOffset != 0 {
		t.Errorf("got %+v %v", resp, err)
	}
}

func TestPullMessageHeaders(t *testing.T) {
	req := &PullMessageRequestHeader{ConsumerGroup: "cg", Topic: "t", QueueId: 1, QueueOffset: 10, MaxMsgNums: 32, Subscription: "*"}
	got, err := DecodePullMessageRequestHeader(req.Encode())
	if err != nil || *got != *req {
		t.Errorf("got %+v %v", got, err)
	}
	resp := &PullMessageResponseHeader{NextBeginOffset: 12, MinOffset: 0, MaxOffset: 12}
	back, err := DecodePullMessageResponseHeader(resp.Encode())
	if err != nil || *back != *resp {
		t.Errorf("got %+v %v", back, err)
	}
}
