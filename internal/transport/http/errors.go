// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/observability/logger"
)

// statusFor maps an error kind to an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindInvalidToken, apperr.KindExpiredToken:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var genericMessages = map[apperr.Kind]string{
	apperr.KindNotFound:           "organization not found",
	apperr.KindConflict:           "organization already exists",
	apperr.KindInvalidCredentials: "invalid credentials",
	apperr.KindInvalidToken:       "invalid authentication credentials",
	apperr.KindExpiredToken:       "token expired",
	apperr.KindForbidden:          "you can only manage your own organization",
	apperr.KindStoreUnavailable:   "storage temporarily unavailable",
}

// publicMessage returns a message safe to show to clients. Only invalid
// input errors expose their own text.
func publicMessage(err error) string {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInvalid {
		for e := err; e != nil; e = errors.Unwrap(e) {
			if ae, ok := e.(*apperr.Error); ok && ae.Msg != "" {
				return ae.Msg
			}
		}
		return "invalid request"
	}
	if msg, ok := genericMessages[kind]; ok {
		return msg
	}
	return "internal server error"
}

// respondErr logs err with its failing step and writes the mapped response.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed",
		logger.RequestID(middleware.GetReqID(r.Context())),
		logger.Path(r.URL.Path),
		logger.ErrorKind(string(kind)),
		logger.Step(apperr.OpOf(err)),
		logger.Error(err),
	)

	respondError(w, status, publicMessage(err))
}
