package emrtd

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"io"
	"log/slog"
)

// MRZInfo is the document-number/date-of-birth/date-of-expiry triple used
// to seed BAC and MRZ-based PACE. Dates are six digits, YYMMDD.
type MRZInfo struct {
	DocumentNumber string
	DateOfBirth    string
	DateOfExpiry   string
}

var mrzWeights = [3]int{7, 3, 1}

// mrzCheckDigit computes the ICAO 9303 check digit for an MRZ field: '0'-'9'
// value as-is, 'A'-'Z' maps to 10-35, '<' maps to 0, weighted 7/3/1 cyclic,
// summed mod 10.
func mrzCheckDigit(field string) byte {
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += mrzCharValue(field[i]) * mrzWeights[i%3]
	}
	return byte('0' + sum%10)
}

func mrzCharValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default: // '<' and anything else treated as filler
		return 0
	}
}

// mrzInformation builds the check-digit-augmented concatenation used to
// seed both BAC and MRZ-based PACE (ICAO 9303 part 11 §9.7.2).
func (m MRZInfo) mrzInformation() string {
	return m.DocumentNumber + string(mrzCheckDigit(m.DocumentNumber)) +
		m.DateOfBirth + string(mrzCheckDigit(m.DateOfBirth)) +
		m.DateOfExpiry + string(mrzCheckDigit(m.DateOfExpiry))
}

// BACSeed computes the 20-byte SHA-1 key seed shared by BAC and MRZ-based
// PACE password derivation.
func (m MRZInfo) BACSeed() []byte {
	sum := sha1.Sum([]byte(m.mrzInformation()))
	return sum[:]
}

// bacKeys derives (K_ENC, K_MAC) for BAC: 3DES/SHA-1 KDF over the 16-byte
// truncated seed.
func bacKeys(seed []byte) (kEnc, kMac []byte) {
	truncated := seed[:16]
	kEnc = DeriveKey(truncated, KDFCounterEnc, CipherDESede, HashSHA1)
	kMac = DeriveKey(truncated, KDFCounterMac, CipherDESede, HashSHA1)
	return
}

// PerformBAC runs the three-pass BAC mutual-authentication handshake
// (ICAO 9303 part 11 §4) and returns the secure-messaging Wrapper it
// establishes.
func PerformBAC(t Transport, mrz MRZInfo) (*Wrapper, error) {
	seed := mrz.BACSeed()
	kEnc, kMac := bacKeys(seed)

	resp, err := Transmit(t, Command{CLA: 0x00, INS: 0x84, Ne: 8})
	if err != nil {
		return nil, &BacError{Step: "get-challenge", Reason: err.Error()}
	}
	rndICC := resp.Data
	if len(rndICC) != 8 {
		return nil, &BacError{Step: "get-challenge", Reason: fmt.Sprintf("expected 8-byte RND.ICC, got %d", len(rndICC))}
	}

	rndIFD := make([]byte, 8)
	kIFD := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, rndIFD); err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}
	if _, err := io.ReadFull(rand.Reader, kIFD); err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}

	s := append(append(append([]byte{}, rndIFD...), rndICC...), kIFD...)
	eIFD, err := CBCEncrypt(CipherDESede, kEnc, make([]byte, 8), s)
	if err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}
	mIFD, err := RetailMAC(kMac, PadISO9797M2(eIFD, 8))
	if err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}

	resp, err = Transmit(t, Command{CLA: 0x00, INS: 0x82, Data: append(append([]byte{}, eIFD...), mIFD...), Ne: 40})
	if err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}
	if len(resp.Data) != 40 {
		return nil, &BacError{Step: "external-authenticate", Reason: fmt.Sprintf("expected 40-byte response, got %d", len(resp.Data))}
	}
	eICC := resp.Data[:32]
	mICC := resp.Data[32:]

	checkMAC, err := RetailMAC(kMac, PadISO9797M2(eICC, 8))
	if err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}
	if !bytes.Equal(checkMAC, mICC) {
		return nil, &BacError{Step: "external-authenticate", Reason: "response MAC mismatch"}
	}

	dec, err := CBCDecrypt(CipherDESede, kEnc, make([]byte, 8), eICC)
	if err != nil {
		return nil, &BacError{Step: "external-authenticate", Reason: err.Error()}
	}
	rndICCCheck := dec[:8]
	rndIFDCheck := dec[8:16]
	kICC := dec[16:32]
	if !bytes.Equal(rndICCCheck, rndICC) || !bytes.Equal(rndIFDCheck, rndIFD) {
		return nil, &BacError{Step: "external-authenticate", Reason: "nonce echo mismatch"}
	}

	kSeedSession := make([]byte, 16)
	for i := range kSeedSession {
		kSeedSession[i] = kIFD[i] ^ kICC[i]
	}
	sessEnc := DeriveKey(kSeedSession, KDFCounterEnc, CipherDESede, HashSHA1)
	sessMac := DeriveKey(kSeedSession, KDFCounterMac, CipherDESede, HashSHA1)

	initialSSC := append(append([]byte{}, rndICC[4:8]...), rndIFD[4:8]...)
	slog.Debug("BAC established", "ssc", initialSSC)
	return NewWrapper(sessEnc, sessMac, CipherDESede, initialSSC), nil
}
