package emrtd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestVerifyActiveAuthResponseEC(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := ActiveAuthPublicKey{EC: &priv.PublicKey}

	nonce := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	digest := digestFor(HashSHA256, nonce)

	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	size := (priv.Curve.Params().BitSize + 7) / 8
	response := append(leftPad(r.Bytes(), size), leftPad(s.Bytes(), size)...)

	ok, err := VerifyActiveAuthResponse(pub, nonce, response, HashSHA256)
	if err != nil {
		t.Fatalf("VerifyActiveAuthResponse: %v", err)
	}
	if !ok {
		t.Error("expected response to verify")
	}
}

func TestVerifyActiveAuthResponseECRejectsWrongNonce(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := ActiveAuthPublicKey{EC: &priv.PublicKey}

	nonce := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	digest := digestFor(HashSHA256, nonce)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	size := (priv.Curve.Params().BitSize + 7) / 8
	response := append(leftPad(r.Bytes(), size), leftPad(s.Bytes(), size)...)

	wrongNonce := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	ok, err := VerifyActiveAuthResponse(pub, wrongNonce, response, HashSHA256)
	if err != nil {
		t.Fatalf("VerifyActiveAuthResponse: %v", err)
	}
	if ok {
		t.Error("expected response signed over a different nonce to fail verification")
	}
}

func TestVerifyActiveAuthResponseRejectsMissingKey(t *testing.T) {
	_, err := VerifyActiveAuthResponse(ActiveAuthPublicKey{}, []byte{0x01}, []byte{0x02}, HashSHA256)
	if err == nil {
		t.Fatal("expected error when no public key is supplied")
	}
}
