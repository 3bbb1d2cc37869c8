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

package io

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging/otel"
)

// Connect dials endpoint. getTLSConfig is only consulted for SSL endpoints.
func Connect(endpoint *ServiceEndpoint, connectTimeout time.Duration, getTLSConfig func() *tls.Config) (conn net.Conn, err error) {
	timeStart := time.Now()
	dialer := &net.Dialer{Timeout: connectTimeout}

	if endpoint.SSLEnabled {
		var tlsCfg *tls.Config
		if getTLSConfig != nil {
			tlsCfg = getTLSConfig()
		}
		if tlsCfg == nil {
			err = errors.New("Unable to get TLS config")
		} else {
			var tlsConn *tls.Conn
			if tlsConn, err = tls.DialWithDialer(dialer, endpoint.GetNetwork(), endpoint.Addr, tlsCfg); err == nil {
				conn = tlsConn
				if logging.LOG_DEBUG {
					glog.InfoDepth(1, fmt.Sprintf("connected to %s ssl=%s", endpoint.GetConnString(), getConnectionState(tlsConn)))
				}
			}
		}
	} else {
		if conn, err = dialer.Dial(endpoint.GetNetwork(), endpoint.Addr); err == nil {
			if logging.LOG_DEBUG {
				glog.InfoDepth(1, fmt.Sprintf("connected to %s", endpoint.GetConnString()))
			}
		}
	}

	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
		glog.ErrorDepth(1, fmt.Sprintf("fail to connect %s error: %s", endpoint.GetConnString(), err))
	} else {
		otel.RecordCount(otel.ConnAccept, []otel.Tags{{TagName: otel.Endpoint, TagValue: endpoint.Addr}})
	}
	otel.RecordOutboundConnection(endpoint.GetConnString(), status, time.Since(timeStart))
	return
}

func getConnectionState(c *tls.Conn) string {
	if c == nil {
		return ""
	}
	st := c.ConnectionState()
	rid := 0
	if st.DidResume {
		rid = 1
	}
	return fmt.Sprintf("GoTLS:%s:%s:ssl_r=%d", tls.VersionName(st.Version), tls.CipherSuiteName(st.CipherSuite), rid)
}
