package joincode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"battlemap_server/pkg/errorx"
)

func TestGenerate_AlphabetAndLength(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("len(%q)=%d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("code %q contains %q", code, c)
			}
		}
		if strings.ContainsAny(code, "0OI1L") {
			t.Fatalf("ambiguous character in %q", code)
		}
		if !IsValidFormat(code) {
			t.Fatalf("generated code %q fails format check", code)
		}
	}
}

func TestGenerateUnique_SkipsTakenCodes(t *testing.T) {
	seen := map[string]bool{}
	calls := 0
	code, err := GenerateUnique(context.Background(), func(ctx context.Context, c string) (bool, error) {
		calls++
		seen[c] = true
		// 前三次都报已占用
		return calls <= 3, nil
	})
	if err != nil {
		t.Fatalf("generate unique: %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls=%d", calls)
	}
	if !seen[code] {
		t.Fatalf("returned code was never checked")
	}
}

func TestGenerateUnique_ExhaustedAfterTenAttempts(t *testing.T) {
	calls := 0
	_, err := GenerateUnique(context.Background(), func(ctx context.Context, c string) (bool, error) {
		calls++
		return true, nil
	})
	if !errors.Is(err, errorx.ErrJoinCodeExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}
	if calls != 10 {
		t.Fatalf("calls=%d, want 10", calls)
	}
}

func TestGenerateUnique_ExistsErrorAborts(t *testing.T) {
	boom := errors.New("db down")
	calls := 0
	_, err := GenerateUnique(context.Background(), func(ctx context.Context, c string) (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestIsValidFormat(t *testing.T) {
	cases := map[string]bool{
		"ABC234":   true,
		" abc234 ": true,
		"ABC23":    false,
		"ABC2345":  false,
		"ABC-23":   false,
		"":         false,
	}
	for in, want := range cases {
		if got := IsValidFormat(in); got != want {
			t.Fatalf("IsValidFormat(%q)=%v want %v", in, got, want)
		}
	}
}
