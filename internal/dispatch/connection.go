/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package dispatch

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/sockdrive/internal/wire"
)

// Connection is one accepted socket's actor: it decodes frames, forwards
// requests to the dispatcher's queues, and drains its own private
// reply channel (capacity config.SettingsT.ReplyChanCap, spec §4.3
// default 1) before reading the next frame. id is a fast,
// non-cryptographic identifier used only in log lines (grounded on
// storage/fast_uuid.go's newUUID), never sent on the wire.
type Connection struct {
	id   uuid.UUID
	conn net.Conn
	d    *Dispatcher
	log  *xlog.Log
}

// Serve accepts connections on ln until it errors (typically because
// the listener was closed at process shutdown) and spawns one actor
// goroutine per accepted socket.
func Serve(ln net.Listener, d *Dispatcher, log *xlog.Log) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		c := &Connection{id: newFastUUID(), conn: conn, d: d, log: log}
		go c.run()
	}
}

func (c *Connection) run() {
	defer c.conn.Close()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("sockdrive: connection %s: recovered panic: %v", c.id, r)
		}
	}()
	c.log.Info("sockdrive: connection %s opened from %s", c.id, c.conn.RemoteAddr())

	reply := make(chan []byte, c.d.ReplyChanCap())
	for {
		frame, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.log.Info("sockdrive: connection %s closing: %v", c.id, err)
			return
		}

		if err := c.validateFrame(frame); err != nil {
			c.log.Warning("sockdrive: connection %s closing: %v", c.id, err)
			return
		}

		switch frame.Op {
		case wire.OpWrite:
			c.d.WriteChan() <- WriteRequest{Sector: frame.Sector, Bytes: frame.Bytes}
		case wire.OpRead:
			c.d.ReadChan() <- ReadRequest{Sector: frame.Sector, Ahead: frame.Ahead, Reply: reply}
			payload, ok := <-reply
			if !ok {
				c.log.Info("sockdrive: connection %s closing: dispatcher reply channel closed", c.id)
				return
			}
			if _, err := c.conn.Write(payload); err != nil {
				c.log.Info("sockdrive: connection %s closing: write error: %v", c.id, err)
				return
			}
		}
	}
}

// validateFrame rejects sector numbers that fall outside the drive's
// capacity before they can ever reach diskstore.Layer.Read/Write,
// where they would otherwise panic on a slice index out of range. A
// malformed request is a connection error (spec §7): it terminates
// this connection actor alone and never reaches the dispatcher.
func (c *Connection) validateFrame(frame wire.Frame) error {
	sectors := c.d.Sectors()
	switch frame.Op {
	case wire.OpWrite:
		if frame.Sector >= sectors {
			return fmt.Errorf("write sector %d out of range (capacity %d)", frame.Sector, sectors)
		}
	case wire.OpRead:
		span := uint32(frame.Ahead)
		if span == 0 {
			span = 1
		}
		last := uint64(frame.Sector) + uint64(span) - 1
		if uint64(frame.Sector) >= uint64(sectors) || last >= uint64(sectors) {
			return fmt.Errorf("read span [%d,%d] out of range (capacity %d)", frame.Sector, last, sectors)
		}
	}
	return nil
}
