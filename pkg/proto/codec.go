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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

const (
	kLengthFieldSize       = 4
	kHeaderLengthFieldSize = 4
	kFramePrefixSize       = kLengthFieldSize + kHeaderLengthFieldSize

	// The top byte of the header length is reserved for the serialization
	// type; only JSON (0) is supported.
	kSerializeTypeMask = 0xFF000000

	DefaultMaxFrameSize = 16 * 1024 * 1024
)

func encodeHeader(h *Header) ([]byte, error) {
	if h.ExtFields == nil {
		tmp := *h
		tmp.ExtFields = map[string]string{}
		h = &tmp
	}
	return json.Marshal(h)
}

func decodeHeader(data []byte, h *Header) error {
	if err := json.Unmarshal(data, h); err != nil {
		return err
	}
	if h.ExtFields == nil {
		h.ExtFields = make(map[string]string)
	}
	return nil
}

// Encode serializes the command into a single frame.
func (c *RemotingCommand) Encode() ([]byte, error) {
	header, err := encodeHeader(&c.Header)
	if err != nil {
		return nil, errors.NewFramingError("encode header", err)
	}
	szHeader := len(header)
	szBody := len(c.Body)

	buf := make([]byte, kFramePrefixSize+szHeader+szBody)
	binary.BigEndian.PutUint32(buf[0:], uint32(kHeaderLengthFieldSize+szHeader+szBody))
	binary.BigEndian.PutUint32(buf[4:], uint32(szHeader))
	copy(buf[kFramePrefixSize:], header)
	if szBody != 0 {
		copy(buf[kFramePrefixSize+szHeader:], c.Body)
	}
	return buf, nil
}

// Decode parses one frame from the start of buf. Bytes past the declared
// length are not consumed.
func Decode(buf []byte) (*RemotingCommand, error) {
	if len(buf) < kFramePrefixSize {
		return nil, errors.NewFramingError(fmt.Sprintf("short frame: %d bytes", len(buf)), nil)
	}
	length := int64(int32(binary.BigEndian.Uint32(buf[0:])))
	rawHeaderLen := binary.BigEndian.Uint32(buf[4:])
	if rawHeaderLen&kSerializeTypeMask != 0 {
		return nil, errors.NewFramingError(
			fmt.Sprintf("unsupported serialize type %d", rawHeaderLen>>24), nil)
	}
	headerLen := int64(rawHeaderLen)

	if length < kHeaderLengthFieldSize {
		return nil, errors.NewFramingError(fmt.Sprintf("invalid length %d", length), nil)
	}
	if headerLen > length-kHeaderLengthFieldSize {
		return nil, errors.NewFramingError(
			fmt.Sprintf("header length %d exceeds frame length %d", headerLen, length), nil)
	}
	if int64(len(buf)-kLengthFieldSize) < length {
		return nil, errors.NewFramingError(
			fmt.Sprintf("truncated frame: declared %d, have %d", length, len(buf)-kLengthFieldSize), nil)
	}

	cmd := &RemotingCommand{}
	headerEnd := kFramePrefixSize + headerLen
	if err := decodeHeader(buf[kFramePrefixSize:headerEnd], &cmd.Header); err != nil {
		return nil, errors.NewFramingError("decode header", err)
	}

	szBody := length - kHeaderLengthFieldSize - headerLen
	if szBody > 0 {
		cmd.Body = make([]byte, szBody)
		copy(cmd.Body, buf[headerEnd:headerEnd+szBody])
	}
	return cmd, nil
}

// ReadCommand reads exactly one frame from r. I/O errors are returned as is so
// the caller can tell a closed connection from a bad frame.
func ReadCommand(r io.Reader, maxFrameSize int) (*RemotingCommand, error) {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	var prefix [kLengthFieldSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	length := int64(int32(binary.BigEndian.Uint32(prefix[:])))
	if length < kHeaderLengthFieldSize || length > int64(maxFrameSize) {
		return nil, errors.NewFramingError(fmt.Sprintf("invalid frame length %d", length), nil)
	}

	buf := make([]byte, kLengthFieldSize+length)
	copy(buf, prefix[:])
	if _, err := io.ReadFull(r, buf[kLengthFieldSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return Decode(buf)
}

func (c *RemotingCommand) WriteTo(w io.Writer) (int64, error) {
	buf, err := c.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}
