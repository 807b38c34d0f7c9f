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

package fsops

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// FileInfo describes a file or directory. Platform fields are nil where the
// OS does not expose them.
type FileInfo struct {
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Size       int64      `json:"size"`
	SizeHuman  string     `json:"sizeHuman"`
	Mode       string     `json:"mode"`
	ModTime    time.Time  `json:"modTime"`
	AccessTime *time.Time `json:"accessTime,omitempty"`
	Inode      *uint64    `json:"inode,omitempty"`
	Links      *uint64    `json:"links,omitempty"`
	UID        *uint32    `json:"uid,omitempty"`
	GID        *uint32    `json:"gid,omitempty"`
	MIMEType   string     `json:"mimeType,omitempty"`
}

// GetFileInfo returns metadata for path without following a final symlink.
func (f *FS) GetFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	if err := ensureContext(ctx); err != nil {
		return nil, err
	}
	resolved, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(resolved)
	if err != nil {
		return nil, osError("stat", resolved, err)
	}

	fi := &FileInfo{
		Path:      resolved,
		Name:      info.Name(),
		Type:      entryType(info.Mode()),
		Size:      info.Size(),
		SizeHuman: humanize.IBytes(uint64(max(info.Size(), 0))),
		Mode:      info.Mode().String(),
		ModTime:   info.ModTime(),
	}
	if fi.Type == TypeFile {
		if mt, err := mimetype.DetectFile(resolved); err == nil {
			fi.MIMEType = mt.String()
		} else {
			f.logger.Debug().Str("path", resolved).Err(err).Msg("mime detection failed")
		}
	}
	fillPlatformInfo(resolved, fi)
	return fi, nil
}
