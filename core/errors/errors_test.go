package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestSentinelsMatchByCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", InsufficientBalance("USDT"))
	if !stderrors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance to match sentinel")
	}
	if stderrors.Is(err, ErrOutOfStock) {
		t.Fatalf("different codes must not match")
	}
	if got := InsufficientBalance("USDT").Message; got != "Insufficient USDT Balance" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := InsufficientBalance(" ").Message; got != "Insufficient Balance" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindOnlyTargetMatchesAnyCode(t *testing.T) {
	err := New(KindPayment, CodeReverted, stderrors.New("boom"))
	if !stderrors.Is(err, &Error{Kind: KindPayment}) {
		t.Fatalf("expected kind-only match")
	}
	if stderrors.Is(err, &Error{Kind: KindApproval}) {
		t.Fatalf("kind mismatch must not match")
	}
	if !IsKind(fmt.Errorf("wrapped: %w", err), KindPayment) {
		t.Fatalf("IsKind should unwrap")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code Code
	}{
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), CodeCancelled},
		{"deadline", context.DeadlineExceeded, CodeCancelled},
		{"rejected", stderrors.New("User denied transaction signature"), CodeRejected},
		{"reverted", stderrors.New("execution reverted: not enough stock"), CodeReverted},
		{"transport", stderrors.New("dial tcp: connection refused"), CodeTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err, KindPayment)
			if got.Kind != KindPayment || got.Code != tc.code {
				t.Fatalf("Classify(%v) = %s/%s, want payment/%s", tc.err, got.Kind, got.Code, tc.code)
			}
			if !stderrors.Is(got, tc.err) {
				t.Fatalf("classified error should wrap the cause")
			}
		})
	}
}

func TestClassifyKeepsClassified(t *testing.T) {
	if Classify(nil, KindFetch) != nil {
		t.Fatalf("nil stays nil")
	}
	approveErr := New(KindApproval, CodeRejected, stderrors.New("denied"))
	if got := Classify(fmt.Errorf("approve: %w", approveErr), KindPayment); got != approveErr {
		t.Fatalf("expected the classified error to pass through, got %v", got)
	}
}

func TestErrorString(t *testing.T) {
	if got := ErrOutOfStock.Error(); got != "validation: Out of stock" {
		t.Fatalf("unexpected %q", got)
	}
	err := &Error{Kind: KindFetch, Code: CodeTransport, Err: stderrors.New("eof")}
	if got := err.Error(); got != "fetch: transport: eof" {
		t.Fatalf("unexpected %q", got)
	}
}
