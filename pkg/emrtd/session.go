package emrtd

import (
	"errors"
	"fmt"
	"log/slog"
)

// AccessCredentials bundles whatever access-control secrets the caller has
// available; Session.Open tries PACE first (using whichever of CAN/PIN/MRZ
// is set) and falls back to BAC using MRZ when PACE is unsupported or
// fails (see Open for the transport errors it returns instead).
type AccessCredentials struct {
	MRZ MRZInfo
	CAN string
	PIN string
}

// SessionOptions configures how Session.Open establishes access control
// and which optional later stages (EAC) it is prepared to run.
type SessionOptions struct {
	// PreferPACE, when true (the default caller behavior), attempts PACE
	// before falling back to BAC. Set false to force BAC-only operation
	// against chips that do not require EAC level protections.
	PreferPACE bool

	Logger *slog.Logger
}

// AccessMethod records which access-control protocol a Session actually
// established.
type AccessMethod int

const (
	AccessNone AccessMethod = iota
	AccessBAC
	AccessPACE
)

// Session is the top-level handle a caller drives: select the applet,
// establish access control, read data groups, and optionally step up to
// Chip/Terminal/Active Authentication.
type Session struct {
	transport Transport
	wrapper   *Wrapper
	method    AccessMethod
	log       *slog.Logger

	chipAuthDone bool
}

// Open selects the eMRTD application, attempts PACE (if preferred and
// announced in CardAccess), falls back to BAC, and returns a ready Session.
// A protocol-level PACE failure (wrong credential, MAC mismatch) is not
// fatal: Open silently falls back to BAC per ICAO 9303 part 11 §4.10's
// access-control ladder. A transport error while reading CardAccess (lost
// card, reader failure) is returned immediately since a retry over BAC
// would not help. Failures inside the PACE exchange itself are all reported
// as PaceError, so a transport error there also leads to the BAC fallback.
func Open(transport Transport, creds AccessCredentials, opts SessionOptions) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if err := SelectApplet(transport); err != nil {
		return nil, fmt.Errorf("select applet: %w", err)
	}

	sess := &Session{transport: transport, log: log}

	if opts.PreferPACE {
		if wrapper, method, err := tryPACE(transport, creds, log); err != nil {
			var terr *TransportError
			if asTransportError(err, &terr) {
				return nil, err
			}
			log.Info("PACE unavailable or failed, falling back to BAC", "reason", err)
		} else if wrapper != nil {
			sess.wrapper = wrapper
			sess.method = method
			sess.transport = &SMTransport{Inner: transport, Wrapper: wrapper}
			return sess, nil
		}
	}

	wrapper, err := PerformBAC(sess.transport, creds.MRZ)
	if err != nil {
		return nil, fmt.Errorf("bac: %w", err)
	}
	sess.wrapper = wrapper
	sess.method = AccessBAC
	sess.transport = &SMTransport{Inner: sess.transport, Wrapper: wrapper}
	return sess, nil
}

func asTransportError(err error, target **TransportError) bool {
	return errors.As(err, target)
}

// tryPACE reads CardAccess, selects the first PACE mechanism it can
// resolve a credential for, and runs PerformPACE. Returns (nil, _, err)
// when CardAccess carries no usable PACE entry, which Open treats as an
// unavailability signal rather than a hard error.
func tryPACE(transport Transport, creds AccessCredentials, log *slog.Logger) (*Wrapper, AccessMethod, error) {
	infos, err := ReadCardAccess(transport)
	if err != nil {
		return nil, AccessNone, fmt.Errorf("read card access: %w", err)
	}
	paceInfos := infos.PaceInfos()
	if len(paceInfos) == 0 {
		return nil, AccessNone, fmt.Errorf("no PACE mechanisms announced")
	}

	cred, mrzSeed, err := selectCredential(creds)
	if err != nil {
		return nil, AccessNone, err
	}

	info := paceInfos[0]
	result, err := PerformPACE(transport, info, cred, mrzSeed)
	if err != nil {
		return nil, AccessNone, err
	}
	log.Debug("PACE established", "cipher", info.OID.Cipher)
	return result.Wrapper, AccessPACE, nil
}

func selectCredential(creds AccessCredentials) (PaceCredential, []byte, error) {
	switch {
	case creds.PIN != "":
		return PaceCredential{Kind: CredentialPIN, Value: creds.PIN}, nil, nil
	case creds.CAN != "":
		return PaceCredential{Kind: CredentialCAN, Value: creds.CAN}, nil, nil
	case creds.MRZ.DocumentNumber != "":
		return PaceCredential{Kind: CredentialMRZ}, creds.MRZ.BACSeed(), nil
	default:
		return PaceCredential{}, nil, fmt.Errorf("no usable credential supplied")
	}
}

// AccessMethod reports which access-control protocol established this
// session's secure channel.
func (s *Session) AccessMethod() AccessMethod { return s.method }

// ReadFile reads a raw elementary file over the session's (possibly
// secure-messaging-wrapped) transport.
func (s *Session) ReadFile(fid uint16) ([]byte, error) {
	return ReadFile(s.transport, fid)
}

// ReadDataGroup reads and decodes one data group.
func (s *Session) ReadDataGroup(dg DataGroup) (interface{}, error) {
	return ReadDataGroup(s.transport, dg)
}

// ReadCOM reads and decodes EF.COM.
func (s *Session) ReadCOM() (COM, error) { return ReadCOM(s.transport) }

// ReadSOD reads and decodes EF.SOD.
func (s *Session) ReadSOD() (SOD, error) { return ReadSOD(s.transport) }

// DoChipAuthentication upgrades the session's secure channel using the
// chip's static CA key, replacing the wrapper wholesale and resetting the
// SSC, per ICAO 9303 part 11 §6.2. It is only meaningful after reading
// DG14 and resolving the chip's static public key from it.
func (s *Session) DoChipAuthentication(info ChipAuthInfo, staticKey ChipStaticKey) error {
	wrapper, _, err := PerformChipAuthentication(s.transport, info, staticKey)
	if err != nil {
		return err
	}
	s.wrapper = wrapper
	s.transport = &SMTransport{Inner: s.unwrapInnerTransport(), Wrapper: wrapper}
	s.chipAuthDone = true
	return nil
}

// unwrapInnerTransport returns the non-secure-messaging transport
// underlying the session's current (possibly already wrapped) transport,
// so a CA upgrade can install a fresh SMTransport over the same physical
// link instead of nesting wrappers.
func (s *Session) unwrapInnerTransport() Transport {
	if sm, ok := s.transport.(*SMTransport); ok {
		return sm.Inner
	}
	return s.transport
}

// DoTerminalAuthentication runs Terminal Authentication over the session's
// current (already Chip-Authenticated) channel.
func (s *Session) DoTerminalAuthentication(certs [][]byte, validator CvCertificateValidator, signer TerminalSigner, caAuxData []byte) (TerminalRights, error) {
	if !s.chipAuthDone {
		return TerminalRights{}, &EacError{Phase: "ta-precondition", Reason: "terminal authentication requires a prior chip authentication"}
	}
	return PerformTerminalAuthentication(s.transport, certs, validator, signer, caAuxData)
}

// DoActiveAuthentication challenges the chip using DG15's public key.
func (s *Session) DoActiveAuthentication(pub ActiveAuthPublicKey, hash HashKind) (AAVerdict, error) {
	return PerformActiveAuthentication(s.transport, pub, hash)
}

// Close releases the session. The underlying physical transport's own
// lifecycle (card disconnect) is the caller's responsibility; Close only
// invalidates this Session's secure-messaging state.
func (s *Session) Close() error {
	s.wrapper = nil
	return nil
}
