package omemo

import (
	"crypto/sha512"
	"errors"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

var errBadSignature = errors.New("omemo: malformed xeddsa signature")

// xeddsaSign implements the XEdDSA construction OMEMO uses to sign a
// Curve25519 (Montgomery) public key with the matching Curve25519 private
// scalar: the scalar is lifted onto the birationally-equivalent Edwards
// curve and used to produce a Schnorr-style signature, so one key pair
// serves both Diffie-Hellman and signing without a second key type.
// random must be 64 bytes of fresh entropy.
func xeddsaSign(montgomeryPriv [32]byte, message, random []byte) ([]byte, error) {
	a, err := edwards25519.NewScalar().SetBytesWithClamping(montgomeryPriv[:])
	if err != nil {
		return nil, err
	}
	A := (&edwards25519.Point{}).ScalarBaseMult(a)
	if signBit(A) == 1 {
		a = edwards25519.NewScalar().Negate(a)
		A = (&edwards25519.Point{}).ScalarBaseMult(a)
	}

	nonceHash := sha512.New()
	nonceHash.Write(a.Bytes())
	nonceHash.Write(message)
	nonceHash.Write(random)
	r, err := edwards25519.NewScalar().SetUniformBytes(nonceHash.Sum(nil))
	if err != nil {
		return nil, err
	}
	R := (&edwards25519.Point{}).ScalarBaseMult(r)

	h, err := challengeScalar(R, A, message)
	if err != nil {
		return nil, err
	}

	s := edwards25519.NewScalar().MultiplyAdd(h, a, r)

	sig := make([]byte, 64)
	copy(sig[:32], R.Bytes())
	copy(sig[32:], s.Bytes())
	return sig, nil
}

// xeddsaVerify verifies a signature produced by xeddsaSign against the
// corresponding Montgomery public key.
func xeddsaVerify(montgomeryPub [32]byte, message, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	A, err := montgomeryUToEdwards(montgomeryPub)
	if err != nil {
		return false
	}
	R, err := (&edwards25519.Point{}).SetBytes(sig[:32])
	if err != nil {
		return false
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sig[32:])
	if err != nil {
		return false
	}

	h, err := challengeScalar(R, A, message)
	if err != nil {
		return false
	}

	sB := (&edwards25519.Point{}).ScalarBaseMult(s)
	hA := (&edwards25519.Point{}).ScalarMult(h, A)
	rhs := (&edwards25519.Point{}).Add(R, hA)
	return sB.Equal(rhs) == 1
}

func challengeScalar(R, A *edwards25519.Point, message []byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	h.Write(R.Bytes())
	h.Write(A.Bytes())
	h.Write(message)
	return edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
}

func signBit(p *edwards25519.Point) byte {
	return p.Bytes()[31] >> 7
}

// montgomeryUToEdwards recovers the sign-0 Edwards point birationally
// equivalent to a Curve25519 u-coordinate: y = (u-1)/(u+1), decoded with
// the sign bit forced to 0 (the convention xeddsaSign always negates its
// scalar to match).
func montgomeryUToEdwards(u [32]byte) (*edwards25519.Point, error) {
	uElem, err := new(field.Element).SetBytes(u[:])
	if err != nil {
		return nil, errBadSignature
	}
	one := new(field.Element).One()
	num := new(field.Element).Subtract(uElem, one)
	den := new(field.Element).Add(uElem, one)
	denInv := new(field.Element).Invert(den)
	y := new(field.Element).Multiply(num, denInv)

	yBytes := y.Bytes()
	yBytes[31] &^= 0x80
	return (&edwards25519.Point{}).SetBytes(yBytes)
}
