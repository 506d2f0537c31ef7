package domain

import (
	"errors"
	"strconv"
	"testing"
)

func TestResultMapTransformsSuccessOnly(t *testing.T) {
	doubled := Map(Ok(21), func(n int) int { return n * 2 })
	if v, err := doubled.Unpack(); err != nil || v != 42 {
		t.Fatalf("expected 42, got %d err=%v", v, err)
	}

	boom := errors.New("boom")
	failed := Map(Fail[int](boom), func(n int) int { return n * 2 })
	if _, err := failed.Unpack(); !errors.Is(err, boom) {
		t.Fatalf("expected failure to pass through, got %v", err)
	}
}

func TestResultFlatMapShortCircuitsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	r := FlatMap(Ok(2), func(n int) Result[string] {
		calls++
		return Fail[string](boom)
	})
	r2 := FlatMap(r, func(s string) Result[string] {
		calls++
		return Ok(s + "!")
	})

	if _, err := r2.Unpack(); !errors.Is(err, boom) {
		t.Fatalf("expected first failure to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected chain to short-circuit after first failure, calls=%d", calls)
	}
}

func TestResultFlatMapChainsSuccesses(t *testing.T) {
	r := FlatMap(Ok(7), func(n int) Result[string] {
		return Ok(strconv.Itoa(n))
	})
	if v, err := r.Unpack(); err != nil || v != "7" {
		t.Fatalf("expected chained success, got %q err=%v", v, err)
	}
}

func TestResultMapErrTransformsFailureOnly(t *testing.T) {
	wrapped := Fail[int](errors.New("raw")).MapErr(func(err error) error {
		return WrapError(ErrNetwork, "call backend", err)
	})
	if _, err := wrapped.Unpack(); !IsKind(err, ErrNetwork) {
		t.Fatalf("expected network-kind error, got %v", err)
	}

	ok := Ok(1).MapErr(func(err error) error { return errors.New("must not run") })
	if !ok.IsOk() {
		t.Fatalf("expected success untouched by MapErr")
	}
}

func TestResultFoldReducesBothVariants(t *testing.T) {
	onOk := func(n int) string { return "ok:" + strconv.Itoa(n) }
	onErr := func(err error) string { return "err:" + err.Error() }

	if got := Fold(Ok(3), onOk, onErr); got != "ok:3" {
		t.Fatalf("unexpected fold of success: %q", got)
	}
	if got := Fold(Fail[int](errors.New("x")), onOk, onErr); got != "err:x" {
		t.Fatalf("unexpected fold of failure: %q", got)
	}
}
