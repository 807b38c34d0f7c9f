// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

//go:build linux

package fsops

import (
	"time"

	"golang.org/x/sys/unix"
)

func fillPlatformInfo(path string, fi *FileInfo) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return
	}
	sec, nsec := st.Atim.Unix()
	atime := time.Unix(sec, nsec)
	inode := st.Ino
	links := uint64(st.Nlink)
	uid, gid := st.Uid, st.Gid
	fi.AccessTime = &atime
	fi.Inode = &inode
	fi.Links = &links
	fi.UID = &uid
	fi.GID = &gid
}
