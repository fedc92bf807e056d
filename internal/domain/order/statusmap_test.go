package order

import (
	"testing"
	"time"
)

// The status-code table is a contract with the provider: every documented
// code must map exactly, and nothing unknown may ever terminate an order.
func TestMapStatusCodeTable(t *testing.T) {
	cases := map[string]ProviderStatus{
		"1":          ProviderPending,
		"2":          ProviderSuccess,
		"3":          ProviderProcessing,
		"4":          ProviderExpired,
		"5":          ProviderExpired,
		"6":          ProviderCancelled,
		"pending":    ProviderPending,
		"success":    ProviderSuccess,
		"processing": ProviderProcessing,
		"expired":    ProviderExpired,
		"timeout":    ProviderExpired,
		"cancelled":  ProviderCancelled,
		"error":      ProviderError,
	}

	for code, want := range cases {
		if got := MapStatusCode(code); got != want {
			t.Errorf("code %q: got %s, want %s", code, got, want)
		}
	}
}

// Code 3 means the SMS is dispatched and on the way. Mapping it to anything
// terminal refunds an order that is about to succeed.
func TestProcessingIsNotTerminal(t *testing.T) {
	status := MapStatusCode("3")
	if status != ProviderProcessing {
		t.Fatalf("code 3 must map to processing, got %s", status)
	}
	if _, terminal := terminalStatusFor(status); terminal {
		t.Fatal("processing must never settle an order")
	}
}

func TestUnknownCodesStayPending(t *testing.T) {
	for _, code := range []string{"", "7", "99", "banana", "SUCCESS"} {
		status := MapStatusCode(code)
		if status != ProviderPending {
			t.Errorf("unknown code %q: got %s, want pending", code, status)
		}
		if _, terminal := terminalStatusFor(status); terminal {
			t.Errorf("unknown code %q must not be terminal", code)
		}
	}
}

func TestTerminalStatusMapping(t *testing.T) {
	cases := []struct {
		provider ProviderStatus
		order    Status
		terminal bool
	}{
		{ProviderExpired, StatusTimeout, true},
		{ProviderCancelled, StatusCancelled, true},
		{ProviderError, StatusError, true},
		{ProviderPending, "", false},
		{ProviderProcessing, "", false},
		{ProviderSuccess, "", false},
	}

	for _, tc := range cases {
		got, terminal := terminalStatusFor(tc.provider)
		if terminal != tc.terminal || got != tc.order {
			t.Errorf("terminalStatusFor(%s) = (%s, %v), want (%s, %v)", tc.provider, got, terminal, tc.order, tc.terminal)
		}
	}
}

func TestStateMachineClosure(t *testing.T) {
	all := []Status{StatusPending, StatusCompleted, StatusTimeout, StatusCancelled, StatusError, StatusRefunded}

	fromPending := map[Status]bool{
		StatusCompleted: true,
		StatusTimeout:   true,
		StatusCancelled: true,
		StatusError:     true,
	}

	for _, to := range all {
		got := CanTransition(StatusPending, to)
		if got != fromPending[to] {
			t.Errorf("pending -> %s: got %v, want %v", to, got, fromPending[to])
		}
	}

	// refunded is reachable only from timeout, cancelled and error
	for _, from := range all {
		want := from == StatusTimeout || from == StatusCancelled || from == StatusError
		if got := CanTransition(from, StatusRefunded); got != want {
			t.Errorf("%s -> refunded: got %v, want %v", from, got, want)
		}
	}

	// terminal states other than the refundable trio go nowhere
	for _, from := range []Status{StatusCompleted, StatusRefunded} {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("%s -> %s must be rejected", from, to)
			}
		}
	}
}

func TestScheduleIntervals(t *testing.T) {
	cases := []struct {
		elapsed  time.Duration
		interval time.Duration
	}{
		{0, 2 * time.Second},
		{30 * time.Second, 2 * time.Second},
		{59 * time.Second, 2 * time.Second},
		{60 * time.Second, 3 * time.Second},
		{179 * time.Second, 3 * time.Second},
		{180 * time.Second, 5 * time.Second},
		{299 * time.Second, 5 * time.Second},
		{300 * time.Second, 10 * time.Second},
		{599 * time.Second, 10 * time.Second},
		{600 * time.Second, 10 * time.Second},
		{2 * time.Hour, 10 * time.Second},
	}

	for _, tc := range cases {
		if got := DefaultSchedule.IntervalAt(tc.elapsed); got != tc.interval {
			t.Errorf("IntervalAt(%s) = %s, want %s", tc.elapsed, got, tc.interval)
		}
	}
}

func TestExtractOTP(t *testing.T) {
	cases := []struct {
		sms  string
		want string
	}{
		{"Your Ring4 code is 482913", "482913"},
		{"1234 is your verification code", "1234"},
		{"Use code 98765432 now", "98765432"},
		{"code: 123", "code: 123"}, // too short to be an OTP
		{"  PIN unavailable  ", "PIN unavailable"},
		{"G-723801 is your Google code", "723801"},
	}

	for _, tc := range cases {
		if got := ExtractOTP(tc.sms); got != tc.want {
			t.Errorf("ExtractOTP(%q) = %q, want %q", tc.sms, got, tc.want)
		}
	}
}
