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

package mongo

import (
	"context"
	"errors"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes
const (
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// classify assigns an error kind to driver errors. Unrecognized errors are
// returned as they are.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.Wrap(apperr.KindNotFound, "", err)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(apperr.KindConflict, "", err)
	case unavailable(err):
		return apperr.Wrap(apperr.KindStoreUnavailable, "", err)
	default:
		return err
	}
}

func unavailable(err error) bool {
	return mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded)
}

func hasCode(err error, code int) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(code)
}
