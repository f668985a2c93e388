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

// sockdrive-lz4 is the compressed build variant: :8000, LZ4-compressed
// read responses framed with a 4-byte little-endian length prefix
// (spec §4.4). Compression mode is a build-time choice, never
// negotiated on the wire (spec §9).
package main

import (
	"github.com/launix-de/sockdrive/internal/config"
	"github.com/launix-de/sockdrive/internal/run"
)

func main() {
	cfg := config.Settings
	cfg.BindAddr = "0.0.0.0:8000"
	cfg.Compress = true
	run.Main(cfg)
}
