package logfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Generation returns the file name holding generation k of the chain rooted
// at path: k == 0 is the active file, k > 0 is path.(k-1).
func Generation(path string, k int) string {
	if k == 0 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, k-1)
}

// RotateIfNeeded shifts the chain path, path.0 ... path.(rotateCount-2) by one
// when the active file is larger than sizeLimit. The previous oldest backup is
// replaced and the active name is left free for the next append.
// It reports whether a rotation happened. A rotateCount of 1 never rotates.
func RotateIfNeeded(path string, sizeLimit int64, rotateCount int) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() <= sizeLimit || rotateCount < 2 {
		return false, nil
	}

	for k := rotateCount - 2; k >= 0; k-- {
		src := Generation(path, k)
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return false, fmt.Errorf("stat %s: %w", src, err)
		}
		dst := Generation(path, k+1)
		if err := os.Rename(src, dst); err != nil {
			return false, fmt.Errorf("rotate %s to %s: %w", src, dst, err)
		}
	}
	return true, nil
}
