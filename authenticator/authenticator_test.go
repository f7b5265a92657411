package authenticator

import (
	"testing"

	"rollupclient/coretypes"
)

func testSeed() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func testAccount(suffix uint64) coretypes.AccountID {
	return coretypes.NewAccountID(0, suffix, coretypes.StorageModePublic, coretypes.AccountTypeRegularWallet)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	w, err := NewHDWalletFromSeed(testSeed())
	if err != nil {
		t.Fatalf("NewHDWalletFromSeed: %v", err)
	}
	sig, err := w.Sign(SigningInputs{Account: testAccount(1), Message: []byte("commitment")})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(sig, []byte("commitment")) {
		t.Fatal("expected signature to verify")
	}
	if Verify(sig, []byte("different message")) {
		t.Fatal("expected signature to reject a different message")
	}
}

func TestSignDerivesStableKeyPerAccount(t *testing.T) {
	w, err := NewHDWalletFromSeed(testSeed())
	if err != nil {
		t.Fatalf("NewHDWalletFromSeed: %v", err)
	}
	pub1, err := w.PublicKey(testAccount(1))
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	pub2, err := w.PublicKey(testAccount(1))
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if string(pub1) != string(pub2) {
		t.Fatal("expected the same account to derive the same key every time")
	}

	pubOther, err := w.PublicKey(testAccount(2))
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if string(pub1) == string(pubOther) {
		t.Fatal("expected distinct accounts to derive distinct keys")
	}
}

func TestSignRejectsEmptyMessage(t *testing.T) {
	w, err := NewHDWalletFromSeed(testSeed())
	if err != nil {
		t.Fatalf("NewHDWalletFromSeed: %v", err)
	}
	if _, err := w.Sign(SigningInputs{Account: testAccount(1)}); err == nil {
		t.Fatal("expected an error signing an empty message")
	}
}

func TestHDWalletFromMnemonicRejectsBadChecksum(t *testing.T) {
	_, err := HDWalletFromMnemonic("not a real mnemonic phrase at all", "")
	if err == nil {
		t.Fatal("expected an error for an invalid mnemonic")
	}
}

func TestNewRandomHDWalletRejectsBadEntropySize(t *testing.T) {
	if _, _, err := NewRandomHDWallet(100); err == nil {
		t.Fatal("expected an error for an unsupported entropy size")
	}
}
