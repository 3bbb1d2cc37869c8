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

package netutil

import (
	"net"
	"sync"

	"github.com/golang/glog"
)

var (
	once             sync.Once
	localIPMap       map[string]bool
	localIPv4Address net.IP
)

func load() {
	localIPMap = make(map[string]bool)
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				if localIPv4Address == nil && !ipnet.IP.IsLoopback() {
					localIPv4Address = ipnet.IP.To4()
				}
				localIPMap[ipnet.IP.String()] = true
			}
		}
	} else {
		glog.Warningln(err)
	}
	if localIPv4Address == nil {
		localIPv4Address = net.ParseIP("127.0.0.1").To4()
	}
}

// IsLocalAddress reports whether addr, an IP or a host name, belongs to this
// machine.
func IsLocalAddress(addr string) bool {
	once.Do(load)
	if ip := net.ParseIP(addr); ip != nil {
		return localIPMap[ip.String()] || ip.IsLoopback()
	}
	if ips, err := net.LookupIP(addr); err == nil {
		for _, ip := range ips {
			if localIPMap[ip.String()] || ip.IsLoopback() {
				return true
			}
		}
	}
	return false
}

// GetLocalIPv4Address returns the first non loopback IPv4 address, or
// 127.0.0.1 when there is none.
func GetLocalIPv4Address() net.IP {
	once.Do(load)
	return localIPv4Address
}
