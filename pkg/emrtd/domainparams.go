package emrtd

import (
	"crypto/elliptic"
	"math/big"
	"sync"
)

// Domain parameter-ids as standardized for PACE/EAC (ICAO 9303 part 11,
// Table "Standardized Domain Parameters"). Only the subset this reader
// needs to exercise the worked examples and common deployments is
// registered; unknown ids fail with a CryptoError(no-such-algorithm)
// rather than panicking.
const (
	ParamIDModp1024 = 0  // RFC 2409 Oakley Group 2
	ParamIDModp2048 = 1  // RFC 3526 Group 14
	ParamIDP192     = 8  // NIST P-192
	ParamIDP224     = 10 // NIST P-224
	ParamIDP256     = 12 // NIST P-256
	ParamIDP384     = 16 // NIST P-384
	ParamIDP521     = 18 // NIST P-521
	ParamIDBP256r1  = 13 // brainpoolP256r1
	ParamIDBP384r1  = 17 // brainpoolP384r1
	ParamIDBP512r1  = 19 // brainpoolP512r1
)

var (
	registryOnce sync.Once
	registry     map[int]DomainParams
)

func hexBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("emrtd: invalid hex constant in domain parameter registry")
	}
	return n
}

func initRegistry() {
	registry = make(map[int]DomainParams)

	registry[ParamIDP224] = DomainParams{ID: ParamIDP224, Curve: elliptic.P224()}
	registry[ParamIDP256] = DomainParams{ID: ParamIDP256, Curve: elliptic.P256()}
	registry[ParamIDP384] = DomainParams{ID: ParamIDP384, Curve: elliptic.P384()}
	registry[ParamIDP521] = DomainParams{ID: ParamIDP521, Curve: elliptic.P521()}

	registry[ParamIDBP256r1] = DomainParams{ID: ParamIDBP256r1, Curve: brainpoolP256r1()}

	registry[ParamIDModp1024] = DomainParams{
		ID: ParamIDModp1024,
		P: hexBig("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
			"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
			"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
			"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF"),
		G: big.NewInt(2),
	}
}

// LookupDomainParams resolves a PACE/EAC parameter-id from the registry
// (a lazily initialized, write-once table, §9 DESIGN.md).
func LookupDomainParams(id int) (DomainParams, error) {
	registryOnce.Do(initRegistry)
	p, ok := registry[id]
	if !ok {
		return DomainParams{}, &CryptoError{Kind: CryptoNoSuchAlgorithm}
	}
	return p, nil
}

// brainpoolP256r1 builds the RFC 5639 brainpoolP256r1 curve parameters.
// The standard library has no Brainpool support and no corpus dependency
// provides it either (see DESIGN.md); this constructs it directly over
// crypto/elliptic's generic CurveParams.
func brainpoolP256r1() elliptic.Curve {
	p := hexBig("A9FB57DBA1EEA9BC3E660A909D838D726E3BF623D52620282013481D1F6E5377")
	a := hexBig("7D5A0975FC2C3057EEF67530417AFFE7FB8055C126DC5C6CE94A4B44F330B5D9")
	b := hexBig("26DC5C6CE94A4B44F330B5D9BBD77CBF958416295CF7E1CE6BCCDC18FF8C07B6")
	gx := hexBig("8BD2AEB9CB7E57CB2C4B482FFC81B7AFB9DE27E1E3BD23C23A4453BD9ACE3262")
	gy := hexBig("547EF835C3DAC4FD97F8461A14611DC9C27745132DED8E545C1D54C72F046997")
	n := hexBig("A9FB57DBA1EEA9BC3E660A909D838D718C397AA3B561A6F7901E0E82974856A7")

	return &brainpoolCurve{
		CurveParams: &elliptic.CurveParams{
			P:       p,
			N:       n,
			B:       b,
			Gx:      gx,
			Gy:      gy,
			BitSize: 256,
			Name:    "brainpoolP256r1",
		},
		a: a,
	}
}

// brainpoolCurve implements elliptic.Curve over a curve with a nonstandard
// (non -3) A coefficient, which elliptic.CurveParams' generic arithmetic
// assumes is -3. Brainpool curves do not have that property, so point
// addition/doubling is implemented directly in affine coordinates; this is
// adequate for PACE's single-digit-count-of-scalar-multiplications-per-
// handshake workload and is not intended as a constant-time implementation.
type brainpoolCurve struct {
	*elliptic.CurveParams
	a *big.Int
}

func (c *brainpoolCurve) Params() *elliptic.CurveParams { return c.CurveParams }

func (c *brainpoolCurve) IsOnCurve(x, y *big.Int) bool {
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, c.P)

	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	ax := new(big.Int).Mul(c.a, x)
	x3.Add(x3, ax)
	x3.Add(x3, c.B)
	x3.Mod(x3, c.P)

	return y2.Cmp(x3) == 0
}

func (c *brainpoolCurve) add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	if x1.Sign() == 0 && y1.Sign() == 0 {
		return new(big.Int).Set(x2), new(big.Int).Set(y2)
	}
	if x2.Sign() == 0 && y2.Sign() == 0 {
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	}
	p := c.P
	var lambda *big.Int
	if x1.Cmp(x2) == 0 {
		sum := new(big.Int).Add(y1, y2)
		sum.Mod(sum, p)
		if sum.Sign() == 0 {
			return big.NewInt(0), big.NewInt(0)
		}
		// doubling: lambda = (3x1^2 + a) / (2y1)
		num := new(big.Int).Mul(x1, x1)
		num.Mul(num, big.NewInt(3))
		num.Add(num, c.a)
		den := new(big.Int).Mul(y1, big.NewInt(2))
		lambda = fieldDiv(num, den, p)
	} else {
		num := new(big.Int).Sub(y2, y1)
		den := new(big.Int).Sub(x2, x1)
		lambda = fieldDiv(num, den, p)
	}

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, x1)
	x3.Sub(x3, x2)
	x3.Mod(x3, p)

	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, y1)
	y3.Mod(y3, p)

	return x3, y3
}

func fieldDiv(num, den, p *big.Int) *big.Int {
	denInv := new(big.Int).ModInverse(new(big.Int).Mod(den, p), p)
	out := new(big.Int).Mul(num, denInv)
	return out.Mod(out, p)
}

func (c *brainpoolCurve) Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	return c.add(x1, y1, x2, y2)
}

func (c *brainpoolCurve) Double(x1, y1 *big.Int) (*big.Int, *big.Int) {
	return c.add(x1, y1, x1, y1)
}

func (c *brainpoolCurve) ScalarMult(x1, y1 *big.Int, k []byte) (*big.Int, *big.Int) {
	rx, ry := big.NewInt(0), big.NewInt(0)
	qx, qy := new(big.Int).Set(x1), new(big.Int).Set(y1)
	scalar := new(big.Int).SetBytes(k)
	for i := 0; i < scalar.BitLen(); i++ {
		if scalar.Bit(i) == 1 {
			rx, ry = c.add(rx, ry, qx, qy)
		}
		qx, qy = c.add(qx, qy, qx, qy)
	}
	return rx, ry
}

func (c *brainpoolCurve) ScalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return c.ScalarMult(c.Gx, c.Gy, k)
}
