package main

import (
	"fmt"

	"github.com/ebfe/scard"
)

// cardConnection wraps a PC/SC card connection as an emrtd.Transport.
type cardConnection struct {
	ctx       *scard.Context
	card      *scard.Card
	reader    string
	readerIdx int
}

// connectReader establishes a PC/SC context and connects to the reader at
// readerIndex.
func connectReader(readerIndex int) (*cardConnection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	reader := readers[readerIndex]
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect failed: %w", err)
	}

	return &cardConnection{ctx: ctx, card: card, reader: reader, readerIdx: readerIndex}, nil
}

// listReaderNames reports every PC/SC reader currently visible, for the
// diag command.
func listReaderNames() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}
	defer ctx.Release()
	return ctx.ListReaders()
}

// Close disconnects the card and releases the PC/SC context.
func (c *cardConnection) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

// Transmit implements emrtd.Transport.
func (c *cardConnection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.card == nil {
		return nil, fmt.Errorf("connection not established")
	}
	return c.card.Transmit(apdu)
}
