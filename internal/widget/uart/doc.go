// Package uart drives a DMX line through a plain RS-485 UART on Linux.
//
// The port is configured for 250 kbaud 8N2 through termios2 with a custom
// divisor, the break is generated with TIOCSBRK/TIOCCBRK and replies are
// collected with poll(2) so a read never blocks past its timeout.
//
// The engine times break and mark-after-break itself, so this widget is the
// one that benefits from TimingGood platforms.
package uart
