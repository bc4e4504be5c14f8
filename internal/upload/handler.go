package upload

import (
	"bytes"
	"errors"
	"net"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Receive 从 Fiber 请求中读取 multipart 请求体并交给解析流程。
// 服务端需开启 StreamRequestBody 并关闭 multipart 预解析，请求体才会以流的形式到达；
// 否则退回到已缓冲的 Body。
func (p *Pipeline) Receive(c fiber.Ctx) (*Result, error) {
	boundary, err := Boundary(c.Get(fiber.HeaderContentType))
	if err != nil {
		return nil, err
	}

	req := c.Request()
	var result *Result
	if req.IsBodyStream() {
		size := int64(req.Header.ContentLength())
		if size < 0 {
			size = -1
		}
		result, err = p.ParseSized(c.Context(), req.BodyStream(), size, boundary)
	} else {
		body := c.Body()
		result, err = p.ParseSized(c.Context(), bytes.NewReader(body), int64(len(body)), boundary)
	}

	if errors.Is(err, ErrAborted) && p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"action": "upload",
			"path":   c.Path(),
			"reason": err.Error(),
		}).Info("upload aborted by client")
	}
	return result, err
}

// Handler 是 POST 上传的标准处理器：成功返回 {fields, files}。
// 客户端中断时接管连接并直接关闭，不再写任何响应。
func (p *Pipeline) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		result, err := p.Receive(c)
		if errors.Is(err, ErrAborted) {
			dropConnection(c)
			return nil
		}
		if err != nil {
			return err
		}
		return c.JSON(result)
	}
}

// dropConnection 让 fasthttp 跳过响应写入，处理器返回后连接即被关闭。
func dropConnection(c fiber.Ctx) {
	rc := c.RequestCtx()
	rc.HijackSetNoResponse(true)
	rc.Hijack(func(net.Conn) {})
}
