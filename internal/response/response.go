package response

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

/* ========================================================================
 * Response
 * ========================================================================
 * One JSON envelope for every endpoint. Business errors carry their
 * own HTTP status and stable error code; everything else is a 500
 * with an opaque message.
 * ======================================================================== */

// Result is the standard API envelope.
type Result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func write(c fiber.Ctx, status, code int, msg string, data any) error {
	if data == nil {
		data = &struct{}{}
	}
	return c.Status(status).JSON(Result{Code: code, Msg: msg, Data: data})
}

// Ok returns an empty success envelope.
func Ok(c fiber.Ctx) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", nil)
}

// OkWithData returns a success envelope carrying data.
func OkWithData(c fiber.Ctx, data any) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", data)
}

// Created returns a 201 envelope carrying data.
func Created(c fiber.Ctx, data any) error {
	return write(c, http.StatusCreated, http.StatusCreated, "created", data)
}

// Error maps err onto the envelope. BizError codes pass through so
// clients can branch on them; foreign errors read as a plain 500.
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return Ok(c)
	}
	if bizErr, ok := errors.AsBizError(err); ok {
		return write(c, errors.HTTPStatus(bizErr), int(bizErr.Code), bizErr.Message, nil)
	}
	if fe, ok := err.(*fiber.Error); ok {
		return write(c, fe.Code, fe.Code, fe.Message, nil)
	}
	return write(c, http.StatusInternalServerError, http.StatusInternalServerError, "internal error", nil)
}
