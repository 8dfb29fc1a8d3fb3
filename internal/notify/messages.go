// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package notify

import (
	"fmt"
	"time"
)

// Message builders are pure functions of elapsed time and the formatted
// last-seen timestamp, so notification content is deterministic and
// testable without a transport.

func AlertMessage(sinceLast time.Duration, lastReceived string) string {
	return fmt.Sprintf(
		"*(ERROR) Watchdog alert - Missing*\n"+
			"Description: No Alertmanager Watchdog messages received in the last %d seconds.\n"+
			"Last watchdog message was received at: %s\n"+
			"Summary: Alerting pipeline might be broken or Alertmanager unreachable",
		int(sinceLast.Seconds()), lastReceived)
}

func RepeatedAlertMessage(sinceLast time.Duration, lastReceived string) string {
	return fmt.Sprintf(
		"*(ERROR) Watchdog alert - Still Missing*\n"+
			"Description: No Alertmanager Watchdog messages received in the last %d seconds.\n"+
			"Last watchdog message was received at: %s\n"+
			"Summary: Alerting pipeline might still be broken or Alertmanager unreachable",
		int(sinceLast.Seconds()), lastReceived)
}

func RecoveryMessage() string {
	return "*(INFO) Watchdog recovered*\n" +
		"Description: Alertmanager Watchdog messages are being received again.\n" +
		"Summary: Alerting pipeline has recovered"
}

func StatusMessage(lastReceived string) string {
	return fmt.Sprintf(
		"*(INFO) Watchdog status - OK*\n"+
			"Description: Alertmanager Watchdog messages are being received normally.\n"+
			"Last received: %s\n"+
			"Summary: Alerting pipeline is functioning correctly",
		lastReceived)
}
