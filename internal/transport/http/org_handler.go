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
	"net/http"

	"github.com/opentrusty/orgkeeper/internal/tenant"
)

// CreateOrganizationRequest represents organization creation data
type CreateOrganizationRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// UpdateOrganizationRequest represents an update of the caller's
// organization. OrganizationName is the desired name; omitted optional
// fields stay unchanged.
type UpdateOrganizationRequest struct {
	OrganizationName string  `json:"organization_name"`
	Email            *string `json:"email,omitempty"`
	Password         *string `json:"password,omitempty"`
}

// CreateOrganization provisions an organization, its admin and namespace
// @Summary Create Organization
// @Description Create an organization with its admin and a dedicated namespace
// @Tags Organization
// @Accept json
// @Produce json
// @Param request body CreateOrganizationRequest true "Organization Data"
// @Success 201 {object} tenant.OrgRecord
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /org/create [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.tenantService.Create(r.Context(), req.OrganizationName, req.Email, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// GetOrganization returns an organization with its admin email
// @Summary Get Organization
// @Description Get an organization by name together with its admin email
// @Tags Organization
// @Produce json
// @Param organization_name query string true "Organization name"
// @Success 200 {object} tenant.OrgView
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /org/get [get]
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("organization_name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	view, err := h.tenantService.Get(r.Context(), name)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateOrganization renames the caller's organization and/or changes its
// admin credentials
// @Summary Update Organization
// @Description Rename the caller's organization and optionally change its admin email or password
// @Tags Organization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateOrganizationRequest true "Update Data"
// @Success 200 {object} tenant.StatusRecord
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /org/update [put]
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrganizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OrganizationName == "" {
		respondError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	update := tenant.UpdateRequest{NewName: req.OrganizationName}
	if req.Email != nil {
		update.Email = *req.Email
	}
	if req.Password != nil {
		update.Password = *req.Password
	}

	res, err := h.tenantService.UpdateOrganization(r.Context(), callerFrom(r.Context()), update)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// DeleteOrganization deletes the caller's own organization and its data
// @Summary Delete Organization
// @Description Delete the caller's own organization, its namespace and its admins
// @Tags Organization
// @Produce json
// @Security BearerAuth
// @Param organization_name query string true "Organization name"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /org/delete [delete]
func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("organization_name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	if err := h.tenantService.DeleteOrganization(r.Context(), name, callerFrom(r.Context())); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Organization and data deleted"})
}
