package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/config"
	"github.com/routekit/routekit/internal/metrics"
)

// ErrAborted 表示客户端在上传过程中断开。调用方只需记录日志，不得再写响应。
var ErrAborted = errors.New("upload aborted by client")

// sniffLen 与 http.DetectContentType 读取的最大长度一致。
const sniffLen = 512

// FileMeta 描述一个已提交的文件。
type FileMeta struct {
	OriginalName string `json:"name"`
	StoredPath   string `json:"path"`
	Size         int64  `json:"size"`
	MimeType     string `json:"type"`
}

// Result 是一次上传解析的产物。
type Result struct {
	Fields map[string]string   `json:"fields"`
	Files  map[string]FileMeta `json:"files"`
}

// Pipeline 持有不可变的上传配置（目录与单文件上限），可被并发请求共享。
type Pipeline struct {
	store   *diskStore
	limit   config.ByteSize
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewPipeline 在启动阶段创建目标目录。
func NewPipeline(cfg config.UploadConfig, logger *logrus.Logger, m *metrics.Metrics) (*Pipeline, error) {
	store, err := newDiskStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("upload limit must be positive")
	}
	return &Pipeline{store: store, limit: cfg.Limit, logger: logger, metrics: m}, nil
}

// Dir 返回上传目录的绝对路径。
func (p *Pipeline) Dir() string { return p.store.dir }

// Limit 返回单文件大小上限。
func (p *Pipeline) Limit() config.ByteSize { return p.limit }

// Boundary 从 Content-Type 中取出 multipart boundary，非 multipart 请求返回 ValidationError。
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		return "", apperr.Validation("expected multipart/form-data request body")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", apperr.Validation("multipart boundary missing")
	}
	return boundary, nil
}

// Parse 流式读取一个完整的 multipart 请求体。任何失败都会删除本次请求已提交的全部文件，
// 因此返回错误时目标目录中不会留下本次请求的产物。body 自身的读取错误视为客户端中断，
// 正常结束但内容残缺的请求体视为格式错误。
func (p *Pipeline) Parse(ctx context.Context, body io.Reader, boundary string) (*Result, error) {
	return p.parse(ctx, newBodyReader(body, -1), boundary)
}

// ParseSized 与 Parse 相同，但已知请求体应有 size 字节；提前结束视为客户端中断。
func (p *Pipeline) ParseSized(ctx context.Context, body io.Reader, size int64, boundary string) (*Result, error) {
	return p.parse(ctx, newBodyReader(body, size), boundary)
}

func (p *Pipeline) parse(ctx context.Context, body *bodyReader, boundary string) (*Result, error) {
	result := &Result{
		Fields: make(map[string]string),
		Files:  make(map[string]FileMeta),
	}
	var committed []string
	var total int64

	fail := func(err error) (*Result, error) {
		err = p.classify(ctx, body, err)
		p.store.remove(committed...)
		p.metrics.ObserveUpload(resultLabel(err), 0)
		return nil, err
	}

	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}

		if part.FileName() == "" {
			if err := p.readField(part, result); err != nil {
				part.Close()
				return fail(err)
			}
			part.Close()
			continue
		}

		meta, err := p.saveFile(ctx, part)
		part.Close()
		if err != nil {
			return fail(err)
		}
		committed = append(committed, meta.StoredPath)
		total += meta.Size
		result.Files[fileKey(result.Files, part.FormName())] = meta
	}

	p.metrics.ObserveUpload("ok", total)
	return result, nil
}

func (p *Pipeline) readField(part *multipart.Part, result *Result) error {
	limit := p.limit.Int64()
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > limit {
		return errTooLarge
	}
	result.Fields[part.FormName()] = string(data)
	return nil
}

func (p *Pipeline) saveFile(ctx context.Context, part *multipart.Part) (FileMeta, error) {
	original := part.FileName()
	buffered := bufio.NewReaderSize(part, sniffLen)

	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" {
		head, _ := buffered.Peek(sniffLen)
		mimeType = http.DetectContentType(head)
	}

	tempName, size, err := p.store.spool(ctx, buffered, p.limit.Int64())
	if err != nil {
		return FileMeta{}, err
	}
	stored, err := p.store.commit(tempName, SanitizeFilename(original))
	if err != nil {
		p.store.remove(tempName)
		return FileMeta{}, &writeError{err: err}
	}

	return FileMeta{
		OriginalName: original,
		StoredPath:   stored,
		Size:         size,
		MimeType:     mimeType,
	}, nil
}

// classify 将底层错误映射为统一的错误分类。只有请求体的传输失败或请求上下文取消
// 才算客户端中断；multipart 自身报告的 EOF 一律按格式错误处理。
func (p *Pipeline) classify(ctx context.Context, body *bodyReader, err error) error {
	var we *writeError
	switch {
	case errors.Is(err, errTooLarge):
		return apperr.Validation("maxFileSize exceeded: upload limit is %s", p.limit)
	case body.transportFailure() != nil:
		return fmt.Errorf("%w: %v", ErrAborted, body.transportFailure())
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
	case errors.As(err, &we):
		return apperr.Internal(err, "failed to store upload")
	default:
		return apperr.Validation("malformed multipart body: %v", err)
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrAborted):
		return "aborted"
	case apperr.KindOf(err) == apperr.KindValidation:
		return "rejected"
	default:
		return "failed"
	}
}

// fileKey 为重复的表单字段生成 field[1]、field[2] … 形式的键，避免后者覆盖前者。
func fileKey(files map[string]FileMeta, field string) string {
	if _, taken := files[field]; !taken {
		return field
	}
	for i := 1; ; i++ {
		key := field + "[" + strconv.Itoa(i) + "]"
		if _, taken := files[key]; !taken {
			return key
		}
	}
}
