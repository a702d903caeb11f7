// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import "github.com/ctr/ramses-rf/pkg/protocol"

// ByteLineSource is a line-oriented frame source. The core never imports a
// concrete transport (serial, websocket bridge); cmd/ adapts its Connection
// to this interface via protocol.ScannerLineSource, keeping "serial I/O
// transport is an external collaborator" intact (§6 [ADDED]). It is an
// alias for protocol.LineSource: the codec layer already defines this
// collaborator boundary, and the gateway layer is its only caller.
type ByteLineSource = protocol.LineSource

// ByteLineSink is a line-oriented frame sink, the write-side counterpart of
// ByteLineSource. Alias for protocol.LineSink.
type ByteLineSink = protocol.LineSink

