package upload

import (
	"errors"
	"io"
)

// errShortBody 表示连接在声明的 Content-Length 读完之前结束。
var errShortBody = errors.New("request body ended before Content-Length")

// bodyReader 包装请求体，记录底层传输层的读取失败。
// multipart 对"缺少结束 boundary"和"连接中断"都返回 io.ErrUnexpectedEOF，
// 只有这里记录到的失败才算客户端中断。
type bodyReader struct {
	r        io.Reader
	expected int64 // 小于 0 表示长度未知
	read     int64
	failure  error
}

func newBodyReader(r io.Reader, expected int64) *bodyReader {
	return &bodyReader{r: r, expected: expected}
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if err != nil && b.failure == nil {
		switch {
		case err != io.EOF:
			b.failure = err
		case b.expected >= 0 && b.read < b.expected:
			b.failure = errShortBody
		}
	}
	return n, err
}

// transportFailure 返回记录到的传输失败，没有则为 nil。
func (b *bodyReader) transportFailure() error {
	return b.failure
}
