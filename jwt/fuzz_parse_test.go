package jwt

import (
	"testing"
	"time"
)

// FuzzVerify feeds arbitrary strings to the parser. Invalid input must be
// rejected with an error and never panic.
func FuzzVerify(f *testing.F) {
	mgr, err := NewManager(Config{
		TTL:           5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "fuzz",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := mgr.Issue("acct-1", "user", 0)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJhaWQiOiJ4In0.")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := mgr.Verify(token)
		if err == nil && claims.AccountID == "" {
			t.Fatal("accepted token without account id")
		}
	})
}
