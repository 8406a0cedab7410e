/*
Package emrtd implements the reader side of the ICAO Doc 9303 electronic
Machine Readable Travel Document (eMRTD) stack: access control (BAC, PACE),
chip and terminal authentication (EAC-CA/TA), active authentication (AA),
secure messaging, and the Logical Data Structure (LDS) file codec.

A host application supplies access credentials (MRZ, CAN, or PIN) and an
APDU transport (see Transport); this package drives the access-control
ladder, derives secure-messaging keys, and decodes the signed data-group
files read from the chip.

# Session lifecycle

	sess, err := emrtd.Open(transport, creds, emrtd.SessionOptions{PreferPACE: true})
	dg1, err := sess.ReadDataGroup(emrtd.DG1)
	sess.Close()

With PreferPACE set, Open runs PACE when CardAccess advertises PACEInfo,
falling back to BAC when PACE is unavailable or fails; without it, Open
uses BAC only. Chip Authentication, Terminal
Authentication, and Active Authentication are invoked explicitly once a
session is established.

# Scope

Out of scope: the raw APDU transport to the physical chip, PKI/CMS document
signer verification, biometric image decoding, and writing data groups to a
real chip (the TLV encoders exist only to support round-trip testing).
*/
package emrtd
