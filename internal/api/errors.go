package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{matcher.ErrHistoryNotFound, http.StatusNotFound, "history_not_found"},
	{matcher.ErrNotFound, http.StatusNotFound, "not_found"},
	{matcher.ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
	{matcher.ErrAlreadyReverted, http.StatusConflict, "already_reverted"},
	{gorm.ErrDuplicatedKey, http.StatusConflict, "conflict"},
	{matcher.ErrSelfMergeRejected, http.StatusUnprocessableEntity, "self_merge_rejected"},
	{matcher.ErrNotRevertible, http.StatusUnprocessableEntity, "not_revertible"},
}

// statusFor maps an engine error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Path()).Error("Request failed")
		msg = "internal error"
	}
	return c.JSON(status, errorBody{Error: msg, Code: code})
}

func badRequest(c echo.Context, err error) error {
	logrus.WithError(err).WithField("path", c.Path()).Warn("Invalid request")
	return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
}
