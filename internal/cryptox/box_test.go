package cryptox

import (
	"bytes"
	"testing"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	serverPub, serverSec, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair error: %v", err)
	}
	userPub, userSec, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair error: %v", err)
	}

	token, err := RandomToken()
	if err != nil {
		t.Fatalf("RandomToken error: %v", err)
	}
	nonce, err := GenerateNonce()
	if err != nil {
		t.Fatalf("GenerateNonce error: %v", err)
	}

	sealed := Seal(token, nonce, userPub, serverSec)

	opened, err := Open(sealed, nonce, serverPub, userSec)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !bytes.Equal(opened, token) {
		t.Fatalf("round trip mismatch: got %x want %x", opened, token)
	}
}

func TestOpen_WrongKeyFails(t *testing.T) {
	serverPub, serverSec, _ := GenerateKeypair()
	userPub, _, _ := GenerateKeypair()
	_, otherSec, _ := GenerateKeypair()

	nonce, _ := GenerateNonce()
	sealed := Seal([]byte("secret"), nonce, userPub, serverSec)

	if _, err := Open(sealed, nonce, serverPub, otherSec); err != ErrDecrypt {
		t.Fatalf("want ErrDecrypt with wrong secret key, got %v", err)
	}
}

func TestSeal_FreshNoncesDifferCiphertexts(t *testing.T) {
	serverPub, serverSec, _ := GenerateKeypair()
	userPub, userSec, _ := GenerateKeypair()

	token, _ := RandomToken()

	n1, _ := GenerateNonce()
	n2, _ := GenerateNonce()
	c1 := Seal(token, n1, userPub, serverSec)
	c2 := Seal(token, n2, userPub, serverSec)

	if bytes.Equal(c1, c2) {
		t.Fatal("two seals of the same token must differ under fresh nonces")
	}

	p1, err := Open(c1, n1, serverPub, userSec)
	if err != nil {
		t.Fatalf("Open c1: %v", err)
	}
	p2, err := Open(c2, n2, serverPub, userSec)
	if err != nil {
		t.Fatalf("Open c2: %v", err)
	}
	if !bytes.Equal(p1, p2) || !bytes.Equal(p1, token) {
		t.Fatal("both ciphertexts must decrypt to the same token")
	}
}

func TestDecodeKey_Validation(t *testing.T) {
	pub, _, _ := GenerateKeypair()

	decoded, err := DecodeKey(EncodeKey(pub))
	if err != nil {
		t.Fatalf("DecodeKey error: %v", err)
	}
	if *decoded != *pub {
		t.Fatal("key round trip mismatch")
	}

	if _, err := DecodeKey("dG9vc2hvcnQ="); err == nil {
		t.Fatal("expected error for wrong-length key")
	}
	if _, err := DecodeKey("!!!not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
