package models

import "testing"

func TestPaymentStatusCanAdvanceTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{from: PaymentInit, to: PaymentLinkCreated, want: true},
		{from: PaymentInit, to: PaymentSucceeded, want: true},
		{from: PaymentLinkCreated, to: PaymentSucceeded, want: true},
		{from: PaymentLinkCreated, to: PaymentFailed, want: true},
		{from: PaymentLinkCreated, to: PaymentCanceled, want: true},
		{from: PaymentSucceeded, to: PaymentRefunded, want: true},

		{from: PaymentLinkCreated, to: PaymentLinkCreated, want: false},
		{from: PaymentLinkCreated, to: PaymentInit, want: false},
		{from: PaymentSucceeded, to: PaymentSucceeded, want: false},
		{from: PaymentSucceeded, to: PaymentFailed, want: false},
		{from: PaymentSucceeded, to: PaymentCanceled, want: false},
		{from: PaymentSucceeded, to: PaymentLinkCreated, want: false},
		{from: PaymentFailed, to: PaymentSucceeded, want: false},
		{from: PaymentCanceled, to: PaymentSucceeded, want: false},
		{from: PaymentRefunded, to: PaymentSucceeded, want: false},
		{from: PaymentInit, to: PaymentRefunded, want: false},
		{from: PaymentStatus("unknown"), to: PaymentSucceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Fatalf("%s.CanAdvanceTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPaymentPredecessorsAreNeverTerminal(t *testing.T) {
	t.Parallel()

	for _, next := range []PaymentStatus{PaymentLinkCreated, PaymentSucceeded, PaymentFailed, PaymentCanceled} {
		for _, from := range PaymentPredecessors(next) {
			if from != PaymentInit && from != PaymentLinkCreated {
				t.Fatalf("%s is reachable from settled status %s", next, from)
			}
		}
	}
}
