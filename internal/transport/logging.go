// SPDX-License-Identifier: MIT
package transport

import applog "opentune/internal/log"

// LoggingTransport drops snapshots into the debug log. Useful when running
// headless without a UI attached.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{}
}

func (lt *LoggingTransport) Send(data any) error {
	applog.Debugf("status: %+v", data)
	return nil
}

func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)
