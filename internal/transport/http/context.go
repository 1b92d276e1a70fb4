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
	"context"

	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/opentrusty/orgkeeper/internal/token"
)

type contextKey string

const (
	orgKey     contextKey = "org"
	orgIDKey   contextKey = "org_id"
	subjectKey contextKey = "subject"
)

// GetOrg retrieves the organization name bound to the caller's bearer token.
func GetOrg(ctx context.Context) string {
	if val, ok := ctx.Value(orgKey).(string); ok {
		return val
	}
	return ""
}

// GetOrgID retrieves the stable organization ID bound to the caller's bearer
// token.
func GetOrgID(ctx context.Context) string {
	if val, ok := ctx.Value(orgIDKey).(string); ok {
		return val
	}
	return ""
}

// GetSubject retrieves the subject (admin email) of the caller's bearer token.
func GetSubject(ctx context.Context) string {
	if val, ok := ctx.Value(subjectKey).(string); ok {
		return val
	}
	return ""
}

// callerFrom returns the authenticated caller stored by BearerAuth.
func callerFrom(ctx context.Context) tenant.Caller {
	return tenant.Caller{
		OrgID:   GetOrgID(ctx),
		OrgName: GetOrg(ctx),
		Subject: GetSubject(ctx),
	}
}

func withCaller(ctx context.Context, claims *token.Claims) context.Context {
	ctx = context.WithValue(ctx, orgKey, claims.Organization)
	ctx = context.WithValue(ctx, orgIDKey, claims.OrgID)
	return context.WithValue(ctx, subjectKey, claims.Subject)
}
