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

// sockdrive-plain is the uncompressed build variant: :8002, raw
// ahead*512-byte read responses with no length-prefix framing.
package main

import (
	"github.com/launix-de/sockdrive/internal/config"
	"github.com/launix-de/sockdrive/internal/run"
)

func main() {
	cfg := config.Settings
	cfg.BindAddr = "0.0.0.0:8002"
	cfg.Compress = false
	run.Main(cfg)
}
