package echoapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	echoapi "github.com/Shiv1431/MedAR/apps/api/echo"
	"github.com/Shiv1431/MedAR/core/user"
	emailsvc "github.com/Shiv1431/MedAR/services/email"
)

func Test_userApi_signup(t *testing.T) {
	reqMsg := "this field is required"

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{}),
			wantData: marchallObj(t, map[string]string{
				"first_name": reqMsg, "last_name": reqMsg, "email": reqMsg,
				"password": "password must contain at least 8 characters", "password_confirm": reqMsg,
			}),
		},
		{
			name: "weak password", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				FirstName: "Hero", LastName: "Mwenze", Email: "hero@test.cd",
				Password: "lol12345", PasswordConfirm: "lol12345",
			}),
			wantData: marchallObj(t, map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			}),
		},
		{
			name: "created", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{
				FirstName: "hero", LastName: "mwenze", Email: "Hero.Signup@test.cd",
				Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
		},
		{
			name: "duplicate email", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				FirstName: "Hero", LastName: "Mwenze", Email: "hero.signup@test.cd",
				Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"email": "an account with this email already exists"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/student/signup"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if usr.Role != user.RoleStudent {
					t.Errorf("Role = %q, want %q", usr.Role, user.RoleStudent)
				}
				if usr.Approval != user.StatusPending {
					t.Errorf("Approval = %q, want %q", usr.Approval, user.StatusPending)
				}
				if usr.Verified {
					t.Error("a fresh account must not be verified")
				}
				// names capitalized, email lowered
				if usr.FirstName != "Hero" || usr.LastName != "Mwenze" {
					t.Errorf("name = %q %q, want %q %q", usr.FirstName, usr.LastName, "Hero", "Mwenze")
				}
				if usr.Email != "hero.signup@test.cd" {
					t.Errorf("Email = %q, want %q", usr.Email, "hero.signup@test.cd")
				}
				if len(emailsvc.SentMessages) != 1 || emailsvc.SentMessages[0].TemplateName != "verify_email" {
					t.Errorf("verification mail not sent; SentMessages = %v", emailsvc.SentMessages)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_verifyEmail(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.verify@test.cd", "LolC@t123", false, user.StatusPending)

	req, rec := newRequest(http.MethodGet, "/api/student/verify/"+usr.ID)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "verified") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if !refreshed.Verified {
		t.Error("account not marked verified")
	}

	// unknown id
	req, rec = newRequest(http.MethodGet, "/api/student/verify/lol")
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNotFound)
	}
}

func Test_userApi_login(t *testing.T) {
	createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.login@test.cd", "LolC@t123", true, user.StatusPending)
	createUser(t, user.RoleTeacher, "Prof", "Kalima", "prof.login@test.cd", "LolC@t123", false, user.StatusPending)

	login := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.LoginRequest{}),
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown account", wantCode: http.StatusBadRequest, body: login("lol@test.cd", "LolC@t123"),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong portal", wantCode: http.StatusBadRequest, body: login("prof.login@test.cd", "LolC@t123"),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "bad password", wantCode: http.StatusForbidden, body: login("hero.login@test.cd", "lol"),
			wantData: marchallObj(t, httpErr{Error: "password is incorrect"}),
		},
		{name: "logged in", wantCode: http.StatusOK, body: login("hero.login@test.cd", "LolC@t123")},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/student/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if respData.Token == "" || respData.RefreshToken == "" {
					t.Error("failed! empty token")
				}
				if !respData.User.LastLogin.Valid {
					t.Error("LastLogin not stamped")
				}
				checkAuthCookies(t, rec)

				// the minted token is accepted by the auth middleware
				req, rec := newAuthRequest(http.MethodGet, "/api/student/profile/"+respData.User.ID, respData.Token)
				app.ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					t.Errorf("minted token rejected! code = %v; body %s", rec.Code, rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login_unverified(t *testing.T) {
	createUser(t, user.RoleTeacher, "Prof", "Kalima", "prof.unverified@test.cd", "LolC@t123", false, user.StatusPending)

	body := marchallObj(t, echoapi.LoginRequest{Email: "prof.unverified@test.cd", Password: "LolC@t123"})
	req, rec := newRequest(http.MethodPost, "/api/teacher/login", body)
	app.ServeHTTP(rec, req)

	tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "email not verified"})}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_refreshToken(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.refresh@test.cd", "LolC@t123", true, user.StatusPending)

	// log in for a refresh token
	body := marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: "LolC@t123"})
	req, rec := newRequest(http.MethodPost, "/api/student/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var loginData echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &loginData); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}

	// no token
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)

	// garbage token
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: "lol"}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)

	// a student refresh token is useless on the teacher portal
	req, rec = newRequest(http.MethodPost, "/api/teacher/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: loginData.RefreshToken}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	// valid refresh rotates the pair
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: loginData.RefreshToken}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var refreshData echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshData); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if refreshData.Token == "" || refreshData.RefreshToken == "" {
		t.Error("failed! empty token")
	}

	// the old refresh token is dead
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: loginData.RefreshToken}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
}

func Test_userApi_refreshTokenIsNotABearerToken(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.tokenkinds@test.cd", "LolC@t123", true, user.StatusPending)

	body := marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: "LolC@t123"})
	req, rec := newRequest(http.MethodPost, "/api/student/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var loginData echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &loginData); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}

	// the refresh token must not open protected routes
	req, rec = newAuthRequest(http.MethodGet, "/api/student/profile/"+usr.ID, loginData.RefreshToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)

	// not after a logout either
	req, rec = newAuthRequest(http.MethodPost, "/api/student/logout", loginData.Token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	req, rec = newAuthRequest(http.MethodGet, "/api/student/profile/"+usr.ID, loginData.RefreshToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)

	// and an access token cannot mint new token pairs
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: loginData.Token}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
}

func Test_userApi_logout(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.logout@test.cd", "LolC@t123", true, user.StatusPending)

	body := marchallObj(t, echoapi.LoginRequest{Email: usr.Email, Password: "LolC@t123"})
	req, rec := newRequest(http.MethodPost, "/api/student/login", body)
	app.ServeHTTP(rec, req)
	var loginData echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &loginData); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}

	req, rec = newAuthRequest(http.MethodPost, "/api/student/logout", loginData.Token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Logged out."})}, rec)

	// the refresh token no longer works
	req, rec = newRequest(http.MethodPost, "/api/student/token-refresh", marchallObj(t, echoapi.RefreshRequest{RefreshToken: loginData.RefreshToken}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusUnauthorized)
	}
}

func Test_userApi_profile(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.profile@test.cd", "LolC@t123", true, user.StatusPending)
	other := createUser(t, user.RoleStudent, "King", "Badi", "king.profile@test.cd", "LolC@t123", true, user.StatusPending)
	admin := createUser(t, user.RoleAdmin, "Admin", "Mkubwa", "admin.profile@test.cd", "LolC@t123", true, user.StatusApproved)

	usrToken := getToken(t, usr)

	tests := []httpTest{
		{name: "Auth required", path: "/api/student/profile/" + usr.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{name: "Own profile", path: "/api/student/profile/" + usr.ID, token: usrToken, wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
		{name: "Somebody else's profile", path: "/api/student/profile/" + other.ID, token: usrToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "Admin sees any profile", path: "/api/student/profile/" + other.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, other)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_updateProfile(t *testing.T) {
	usr := createUser(t, user.RoleTeacher, "Prof", "Kalima", "prof.update@test.cd", "LolC@t123", true, user.StatusApproved)
	token := getToken(t, usr)

	body := marchallObj(t, user.UpdateProfile{FirstName: "professor", Phone: "+243970000042"})
	req, rec := newAuthRequest(http.MethodPut, "/api/teacher/profile/"+usr.ID, token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	var updated user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if updated.FirstName != "Professor" {
		t.Errorf("FirstName = %q, want %q", updated.FirstName, "Professor")
	}
	if updated.LastName != "Kalima" {
		t.Errorf("LastName = %q, want %q", updated.LastName, "Kalima")
	}
	if updated.Details == nil || updated.Details.Phone != "+243970000042" {
		t.Error("phone not saved on details")
	}
}

func Test_userApi_forgetPassword(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.forget@test.cd", "LolC@t123", true, user.StatusPending)
	tokenRegex := regexp.MustCompile("resetpassword/([0-9a-f]{64})")

	successData := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	// unknown email also returns 200
	emailsvc.SentMessages = nil
	req, rec := newRequest(http.MethodPost, "/api/student/forgetpassword", marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.cd"}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)
	if len(emailsvc.SentMessages) != 0 {
		t.Errorf("len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
	}

	req, rec = newRequest(http.MethodPost, "/api/student/forgetpassword", marchallObj(t, echoapi.PasswordResetRequest{Email: usr.Email}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}
	match := tokenRegex.FindStringSubmatch(emailsvc.SentMessages[0].TextContent)
	if match == nil {
		t.Fatalf("no reset link in mail content: %s", emailsvc.SentMessages[0].TextContent)
	}
	token := match[1]

	// consume the token
	body := marchallObj(t, user.ResetUserPassword{Password: "NewC@t456", PasswordConfirm: "NewC@t456"})
	req, rec = newRequest(http.MethodPost, "/api/student/forgetpassword/"+token, body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
	}, rec)

	refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if err = refreshed.CheckPassword("NewC@t456"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	// single use
	req, rec = newRequest(http.MethodPost, "/api/student/forgetpassword/"+token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
}

func Test_userApi_submitVerification(t *testing.T) {
	usr := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.docs@test.cd", "LolC@t123", true, user.StatusPending)
	token := getToken(t, usr)

	var body strings.Builder
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"phone":             "+243970000099",
		"address":           "12 Av. Lumumba, Lubumbashi",
		"highest_education": "Higher Secondary",
		"secondary_school":  "Institut Imara",
		"higher_school":     "Lycée Tuendelee",
		"secondary_marks":   "78.5",
		"higher_marks":      "82",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() failed: %v", err)
		}
	}
	for _, f := range []string{"aadhaar", "secondary", "higher"} {
		fw, err := w.CreateFormFile(f, f+".pdf")
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		_, _ = fmt.Fprint(fw, "%PDF-1.4 test")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/student/verification/"+usr.ID, strings.NewReader(body.String()))
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	var updated user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if updated.Details == nil {
		t.Fatal("details missing from response")
	}
	if updated.Details.AadhaarURL != "http://media.local/aadhaar.pdf" {
		t.Errorf("AadhaarURL = %q, want %q", updated.Details.AadhaarURL, "http://media.local/aadhaar.pdf")
	}
	if updated.Details.SecondaryMarks != 78.5 {
		t.Errorf("SecondaryMarks = %v, want %v", updated.Details.SecondaryMarks, 78.5)
	}
	if updated.Approval != user.StatusPending {
		t.Errorf("Approval = %q, want %q", updated.Approval, user.StatusPending)
	}
}

func checkAuthCookies(t *testing.T, rec *httptest.ResponseRecorder) {
	var hasToken, hasRefresh bool
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "token":
			hasToken = c.Value != ""
		case "refreshToken":
			hasRefresh = c.Value != ""
		}
	}
	if !hasToken || !hasRefresh {
		t.Error("auth cookies not set")
	}
}
