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
Package message defines the messages a producer sends and a consumer pulls.

Bodies are opaque bytes. User and system metadata travel as properties, which
are serialized as name\x01value\x02 pairs.
*/
package message

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	PropertyKeys           = "KEYS"
	PropertyTags           = "TAGS"
	PropertyWaitStoreMsgOK = "WAIT"
	PropertyDelayLevel     = "DELAY"
	PropertyUniqueKey      = "UNIQ_KEY"
	PropertyShardingKey    = "__SHARDINGKEY"
	PropertyMaxOffset      = "MAX_OFFSET"
	PropertyMinOffset      = "MIN_OFFSET"
	PropertyRegion         = "MSG_REGION"
	PropertyTraceSwitch    = "TRACE_ON"

	nameValueSeparator = '\001'
	propertySeparator  = '\002'
	keySeparator       = " "
)

// Message is not safe for concurrent mutation.
type Message struct {
	Topic      string
	Body       []byte
	Flag       int32
	properties map[string]string
}

func NewMessage(topic string, body []byte) *Message {
	return &Message{
		Topic:      topic,
		Body:       body,
		properties: make(map[string]string),
	}
}

func (m *Message) WithProperty(key, value string) *Message {
	if m.properties == nil {
		m.properties = make(map[string]string)
	}
	m.properties[key] = value
	return m
}

func (m *Message) GetProperty(key string) string {
	return m.properties[key]
}

func (m *Message) RemoveProperty(key string) string {
	v := m.properties[key]
	delete(m.properties, key)
	return v
}

// Properties returns a copy of all properties.
func (m *Message) Properties() map[string]string {
	props := make(map[string]string, len(m.properties))
	for k, v := range m.properties {
		props[k] = v
	}
	return props
}

func (m *Message) WithTag(tag string) *Message {
	return m.WithProperty(PropertyTags, tag)
}

func (m *Message) GetTags() string {
	return m.GetProperty(PropertyTags)
}

func (m *Message) WithKeys(keys ...string) *Message {
	return m.WithProperty(PropertyKeys, strings.Join(keys, keySeparator))
}

func (m *Message) GetKeys() string {
	return m.GetProperty(PropertyKeys)
}

func (m *Message) WithShardingKey(key string) *Message {
	return m.WithProperty(PropertyShardingKey, key)
}

func (m *Message) GetShardingKey() string {
	return m.GetProperty(PropertyShardingKey)
}

func (m *Message) WithDelayTimeLevel(level int) *Message {
	return m.WithProperty(PropertyDelayLevel, strconv.Itoa(level))
}

func (m *Message) GetUniqueKey() string {
	return m.GetProperty(PropertyUniqueKey)
}

func (m *Message) WaitStoreMsgOK() bool {
	v := m.GetProperty(PropertyWaitStoreMsgOK)
	return v == "" || v == "true"
}

func (m *Message) MarshallProperties() string {
	return MarshalProperties(m.properties)
}

func (m *Message) UnmarshalProperties(data []byte) {
	m.properties = UnmarshalProperties(data)
}

func (m *Message) String() string {
	return fmt.Sprintf("[topic=%s, flag=%d, properties=%v, body_len=%d]",
		m.Topic, m.Flag, m.properties, len(m.Body))
}

// MarshalProperties writes pairs in key order so the output is stable.
func MarshalProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(nameValueSeparator)
		b.WriteString(props[k])
		b.WriteByte(propertySeparator)
	}
	return b.String()
}

func UnmarshalProperties(data []byte) map[string]string {
	props := make(map[string]string)
	for _, item := range strings.Split(string(data), string(propertySeparator)) {
		if len(item) == 0 {
			continue
		}
		kv := strings.SplitN(item, string(nameValueSeparator), 2)
		if len(kv) == 2 {
			props[kv[0]] = kv[1]
		}
	}
	return props
}
