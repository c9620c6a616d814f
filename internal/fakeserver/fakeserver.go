// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fakeserver serves an in-memory imitation of the Auth emulator and of the FCM send API,
// for tests that drive a complete App.
package fakeserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Tokens with a fixed outcome on the FCM send API.
const (
	// UnregisteredToken is rejected with a 404 UNREGISTERED error.
	UnregisteredToken = "unregistered-token"

	// MalformedResponseToken is accepted with a 200 response that lacks the message name.
	MalformedResponseToken = "malformed-response-token"
)

// Request is a request received by the Server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSON decodes the body of the request.
func (r *Request) JSON() (map[string]interface{}, error) {
	var m map[string]interface{}
	err := json.Unmarshal(r.Body, &m)
	return m, err
}

type user struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email,omitempty"`
	EmailVerified    bool   `json:"emailVerified,omitempty"`
	DisplayName      string `json:"displayName,omitempty"`
	PhotoURL         string `json:"photoUrl,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	Disabled         bool   `json:"disabled,omitempty"`
	CustomAttributes string `json:"customAttributes,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

type oobCode struct {
	Email       string `json:"email"`
	OobCode     string `json:"oobCode"`
	OobLink     string `json:"oobLink"`
	RequestType string `json:"requestType"`
}

type project struct {
	users                map[string]*user
	oobCodes             []*oobCode
	allowDuplicateEmails bool
}

// Server is an httptest.Server that keeps the state of each project it is called for in memory.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	projects map[string]*project
	requests []*Request
}

// New starts a new Server. Callers must Close it.
func New() *Server {
	s := &Server{projects: make(map[string]*project)}

	r := mux.NewRouter()
	r.HandleFunc("/v1/projects/{project}/messages:send", s.sendMessage).Methods(http.MethodPost)

	auth := r.PathPrefix("/identitytoolkit.googleapis.com/v1/projects/{project}").Subrouter()
	auth.HandleFunc("/accounts", s.createUser).Methods(http.MethodPost)
	auth.HandleFunc("/accounts:lookup", s.lookupUsers).Methods(http.MethodPost)
	auth.HandleFunc("/accounts:update", s.updateUser).Methods(http.MethodPost)
	auth.HandleFunc("/accounts:delete", s.deleteUser).Methods(http.MethodPost)
	auth.HandleFunc("/accounts:sendOobCode", s.sendOobCode).Methods(http.MethodPost)

	emulator := r.PathPrefix("/emulator/v1/projects/{project}").Subrouter()
	emulator.HandleFunc("/accounts", s.clearAccounts).Methods(http.MethodDelete)
	emulator.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	emulator.HandleFunc("/config", s.updateConfig).Methods(http.MethodPatch)
	emulator.HandleFunc("/oobCodes", s.listOobCodes).Methods(http.MethodGet)
	emulator.HandleFunc("/verificationCodes", s.listVerificationCodes).Methods(http.MethodGet)

	s.Server = httptest.NewServer(s.record(r))
	return s
}

// Host returns the host:port the Server listens on.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Requests returns the requests received so far, in order.
func (s *Server) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// UserCount returns the number of accounts held for the project.
func (s *Server) UserCount(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.project(projectID).users)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(b))

		s.mu.Lock()
		s.requests = append(s.requests, &Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   b,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// project must be called with s.mu held.
func (s *Server) project(id string) *project {
	p, ok := s.projects[id]
	if !ok {
		p = &project{users: make(map[string]*user)}
		s.projects[id] = p
	}
	return p
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message      map[string]interface{} `json:"message"`
		ValidateOnly bool                   `json:"validateOnly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Request contains an invalid argument.")
		return
	}

	switch token, _ := req.Message["token"].(string); token {
	case UnregisteredToken:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    http.StatusNotFound,
				"message": "Requested entity was not found.",
				"status":  "NOT_FOUND",
				"details": []interface{}{
					map[string]interface{}{
						"@type":     "type.googleapis.com/google.firebase.fcm.v1.FcmError",
						"errorCode": "UNREGISTERED",
					},
				},
			},
		})
	case MalformedResponseToken:
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	default:
		name := fmt.Sprintf("projects/%s/messages/%s", mux.Vars(r)["project"], uuid.NewString())
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": name})
	}
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u user
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(mux.Vars(r)["project"])
	if u.LocalID == "" {
		u.LocalID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if _, ok := p.users[u.LocalID]; ok {
		writeError(w, http.StatusBadRequest, "", "DUPLICATE_LOCAL_ID")
		return
	}
	if u.Email != "" && !p.allowDuplicateEmails && p.findByEmail(u.Email) != nil {
		writeError(w, http.StatusBadRequest, "", "EMAIL_EXISTS")
		return
	}
	u.CreatedAt = strconv.FormatInt(time.Now().UnixMilli(), 10)
	p.users[u.LocalID] = &u
	writeJSON(w, http.StatusOK, map[string]interface{}{"localId": u.LocalID})
}

func (p *project) findByEmail(email string) *user {
	for _, u := range p.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *Server) lookupUsers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocalID     []string `json:"localId"`
		Email       []string `json:"email"`
		PhoneNumber []string `json:"phoneNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(mux.Vars(r)["project"])
	found := make(map[string]*user)
	for _, u := range p.users {
		if contains(req.LocalID, u.LocalID) || (u.Email != "" && contains(req.Email, u.Email)) ||
			(u.PhoneNumber != "" && contains(req.PhoneNumber, u.PhoneNumber)) {
			found[u.LocalID] = u
		}
	}
	if len(found) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"kind": "identitytoolkit#GetAccountInfoResponse"})
		return
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	users := make([]*user, 0, len(ids))
	for _, id := range ids {
		users = append(users, found[id])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocalID          string   `json:"localId"`
		Email            *string  `json:"email"`
		EmailVerified    *bool    `json:"emailVerified"`
		DisplayName      *string  `json:"displayName"`
		PhotoURL         *string  `json:"photoUrl"`
		PhoneNumber      *string  `json:"phoneNumber"`
		Disabled         *bool    `json:"disableUser"`
		CustomAttributes *string  `json:"customAttributes"`
		DeleteAttribute  []string `json:"deleteAttribute"`
		DeleteProvider   []string `json:"deleteProvider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.project(mux.Vars(r)["project"]).users[req.LocalID]
	if !ok {
		writeError(w, http.StatusBadRequest, "", "USER_NOT_FOUND")
		return
	}
	setString(&u.Email, req.Email)
	setString(&u.DisplayName, req.DisplayName)
	setString(&u.PhotoURL, req.PhotoURL)
	setString(&u.PhoneNumber, req.PhoneNumber)
	setString(&u.CustomAttributes, req.CustomAttributes)
	if req.EmailVerified != nil {
		u.EmailVerified = *req.EmailVerified
	}
	if req.Disabled != nil {
		u.Disabled = *req.Disabled
	}
	for _, attr := range req.DeleteAttribute {
		switch attr {
		case "DISPLAY_NAME":
			u.DisplayName = ""
		case "PHOTO_URL":
			u.PhotoURL = ""
		}
	}
	if contains(req.DeleteProvider, "phone") {
		u.PhoneNumber = ""
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"localId": u.LocalID})
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocalID string `json:"localId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(mux.Vars(r)["project"])
	if _, ok := p.users[req.LocalID]; !ok {
		writeError(w, http.StatusBadRequest, "", "USER_NOT_FOUND")
		return
	}
	delete(p.users, req.LocalID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": "identitytoolkit#DeleteAccountResponse"})
}

func (s *Server) sendOobCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestType string `json:"requestType"`
		Email       string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "", "MISSING_EMAIL")
		return
	}

	code := uuid.NewString()
	oc := &oobCode{
		Email:       req.Email,
		OobCode:     code,
		OobLink:     fmt.Sprintf("%s/emulator/action?mode=%s&oobCode=%s", s.URL, req.RequestType, code),
		RequestType: req.RequestType,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.project(mux.Vars(r)["project"])
	p.oobCodes = append(p.oobCodes, oc)
	writeJSON(w, http.StatusOK, map[string]interface{}{"email": oc.Email, "oobLink": oc.OobLink})
}

func (s *Server) clearAccounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(mux.Vars(r)["project"]).users = make(map[string]*user)
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

type emulatorConfig struct {
	SignIn struct {
		AllowDuplicateEmails bool `json:"allowDuplicateEmails"`
	} `json:"signIn"`
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var conf emulatorConfig
	conf.SignIn.AllowDuplicateEmails = s.project(mux.Vars(r)["project"]).allowDuplicateEmails
	writeJSON(w, http.StatusOK, conf)
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var conf emulatorConfig
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.project(mux.Vars(r)["project"]).allowDuplicateEmails = conf.SignIn.AllowDuplicateEmails
	writeJSON(w, http.StatusOK, conf)
}

func (s *Server) listOobCodes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.project(mux.Vars(r)["project"]).oobCodes
	if codes == nil {
		codes = []*oobCode{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"oobCodes": codes})
}

func (s *Server) listVerificationCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"verificationCodes": []interface{}{}})
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if status != "" {
		body["status"] = status
	}
	writeJSON(w, code, map[string]interface{}{"error": body})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
