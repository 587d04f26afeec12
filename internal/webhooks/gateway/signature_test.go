package gatewaywebhook

import (
	"testing"

	pkgerrors "github.com/tyrekart/tyrekart-backend/pkg/errors"
)

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.success"}`)
	secret := "whsec_test"

	if err := VerifySignature(secret, body, Sign(secret, body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	cases := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"malformed", "not-hex!"},
		{"wrong secret", Sign("other", body)},
		{"wrong body", Sign(secret, []byte(`{}`))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(secret, body, tc.signature)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifySignatureDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	if err := VerifySignature("", []byte("anything"), ""); err != nil {
		t.Fatalf("verification should be disabled: %v", err)
	}
}

func TestPaymentIDDeterminism(t *testing.T) {
	t.Parallel()

	order := mustUUID(t)
	a := PaymentID(order, "TXN-1")
	b := PaymentID(order, "TXN-1")
	c := PaymentID(order, "TXN-2")
	if a != b {
		t.Fatal("same inputs must derive the same id")
	}
	if a == c {
		t.Fatal("different transactions must derive different ids")
	}
}
