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
Package proto implements the broker remoting protocol.

# Remoting Command

A command looks like

	+-------------------+--------------------+--------------------+------------------+
	| 4-byte length     | 4-byte header len  | header (JSON)      | body (optional)  |
	+-------------------+--------------------+--------------------+------------------+

	length:
	  big endian int32, 4 + header len + body len. The length field itself is
	  not counted.
	header len:
	  big endian int32, number of header bytes.
	header:
	  JSON object
	    code       int     request or response code
	    language   string  "OTHER"
	    version    int     protocol revision, 431
	    opaque     int32   correlation id, echoed by the peer in the response
	    flag       int     request/response/oneway bits, passed through untouched
	    remark     string
	    extFields  object  string to string
	body:
	  raw bytes, header len and length fully determine its size

Lengths are always computed from the serialized header and the body at encode
time.

# Opaque

Every request built by NewRequestCommand draws its opaque from an
OpaqueGenerator. All connections of a client share one generator so that ids are
unique among requests in flight. The generator is a 32-bit signed counter; after
2^32 commands it wraps and ids can repeat. A response keeps the opaque of the
request it answers.
*/
package proto
