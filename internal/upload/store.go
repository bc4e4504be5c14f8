package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// errTooLarge 表示单个文件或字段超过了配置的上限。
var errTooLarge = errors.New("upload exceeds size limit")

// maxSuffix 限制同名文件的重试次数。
const maxSuffix = 10000

// diskStore 负责目标目录内的临时文件与提交，所有路径都必须落在 dir 之内。
type diskStore struct {
	dir string
}

func newDiskStore(dir string) (*diskStore, error) {
	if dir == "" {
		return nil, errors.New("upload directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &diskStore{dir: abs}, nil
}

// spool 将 body 写入临时文件，超过 limit 字节时删除临时文件并返回 errTooLarge。
func (s *diskStore) spool(ctx context.Context, body io.Reader, limit int64) (string, int64, error) {
	tempFile, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, &writeError{err: err}
	}
	tempName := tempFile.Name()

	written, err := copyLimited(ctx, tempFile, body, limit)
	if closeErr := tempFile.Close(); err == nil && closeErr != nil {
		err = &writeError{err: closeErr}
	}
	if err != nil {
		os.Remove(tempName)
		return "", written, err
	}
	return tempName, written, nil
}

// commit 把临时文件移动到 name 对应的位置。同名文件已存在时依次尝试 name-1.ext、name-2.ext，
// 通过 O_EXCL 预占名称，保证并发请求之间也不会互相覆盖。
func (s *diskStore) commit(tempName, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "-" + strconv.Itoa(i) + ext
		}
		target, err := s.path(candidate)
		if err != nil {
			return "", err
		}

		placeholder, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return "", err
		}
		placeholder.Close()

		if err := os.Rename(tempName, target); err != nil {
			os.Remove(target)
			return "", err
		}
		return target, nil
	}
	return "", fmt.Errorf("no free file name for %s", name)
}

func (s *diskStore) remove(paths ...string) {
	for _, p := range paths {
		if p != "" {
			os.Remove(p)
		}
	}
}

// path 拼接目标路径并确认结果仍位于上传目录内。
func (s *diskStore) path(name string) (string, error) {
	filePath := filepath.Join(s.dir, name)
	if filepath.Dir(filePath) != s.dir {
		return "", errors.New("invalid upload path")
	}
	return filePath, nil
}

// copyLimited 与 copyWithContext 类似，但在写入第 limit+1 个字节前中止。
func copyLimited(ctx context.Context, dst io.Writer, src io.Reader, limit int64) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if limit > 0 && copied+int64(n) > limit {
				return copied, errTooLarge
			}
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, &writeError{err: wErr}
			}
			if w < n {
				return copied, &writeError{err: io.ErrShortWrite}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

// writeError 标记磁盘写入失败，与读取请求体时的错误区分开。
type writeError struct {
	err error
}

func (e *writeError) Error() string { return "write upload: " + e.err.Error() }

func (e *writeError) Unwrap() error { return e.err }
