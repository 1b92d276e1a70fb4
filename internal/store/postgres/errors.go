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

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/opentrusty/orgkeeper/internal/apperr"
)

// SQLSTATE codes
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
	codeDuplicateTable  = "42P07"
)

// classify assigns an error kind to driver errors. Unrecognized errors are
// returned as they are.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.Wrap(apperr.KindNotFound, "", err)
	case pgCode(err) == codeUniqueViolation:
		return apperr.Wrap(apperr.KindConflict, "", err)
	case unavailable(err):
		return apperr.Wrap(apperr.KindStoreUnavailable, "", err)
	default:
		return err
	}
}

func unavailable(err error) bool {
	var ce *pgconn.ConnectError
	return errors.As(err, &ce) ||
		pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
