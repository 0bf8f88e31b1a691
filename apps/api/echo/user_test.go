package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/testutil"
)

const pwd = "Passw0rd!x"

func Test_userApi_signup(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "taken", "taken@test.cd", pwd, user.RoleStudent)

	newUser := func(email, uname, password, role string) []byte {
		return marchallObj(t, user.NewUser{
			Email:           email,
			Username:        uname,
			Password:        password,
			PasswordConfirm: password,
			Role:            role,
		})
	}

	tests := []httpTest{
		{
			name:     "taken email",
			body:     newUser(" Taken@Test.cd ", "other", pwd, user.RoleStudent),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrUserExists.Error()}),
		},
		{
			name:     "invalid role",
			body:     newUser("new@test.cd", "newbie", pwd, "admin"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{
			name:     "weak password",
			body:     newUser("new@test.cd", "newbie", "password", user.RoleStudent),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character and 1 digit",
			}),
		},
		{
			name:     "missing fields",
			body:     []byte(`{"email": "new@test.cd", "password": "Passw0rd!x", "password_confirm": "Passw0rd!x"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"role":     "this field is required",
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/signup"
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			e.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", newUser("New@Test.cd", "newbie", pwd, "Instructor"))
		e.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp SignupResponse
		unmarshallObj(t, rec.Body.Bytes(), &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "new@test.cd", resp.User.Email)
		assert.Equal(t, user.RoleInstructor, resp.User.Role)

		usr, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "new@test.cd"})
		require.NoError(t, err)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.NoError(t, usr.CheckPassword(pwd))
	})
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada", "ada@test.cd", pwd, user.RoleStudent)

	login := func(email, password string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: password})
	}
	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name:     "unknown email",
			body:     login("bob@test.cd", pwd),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "wrong password",
			body:     login("ada@test.cd", "Wr0ngPassword"),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "missing password",
			body:     login("ada@test.cd", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "this field is required"}),
		},
		{
			name:     "malformed body",
			body:     []byte(`{"email": `),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			e.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", login(" ADA@test.cd", pwd))
		e.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshallObj(t, rec.Body.Bytes(), &resp)
		require.NotEmpty(t, resp.Token)

		// the token works and the login was recorded
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
		e.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var me user.User
		unmarshallObj(t, rec.Body.Bytes(), &me)
		assert.Equal(t, usr.ID, me.ID)
		assert.True(t, me.LastLogin.Valid)
	})
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, e.usrRepo, "ada", "ada@test.cd", pwd, user.RoleStudent)
	gone := testutil.CreateUser(t, e.usrRepo, "gone", "gone@test.cd", pwd, user.RoleStudent)
	goneToken := e.token(t, gone)
	require.NoError(t, e.usrRepo.DeleteUser(ctx, gone.ID))

	stored, err := e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "deleted user",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    goneToken,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name:     "ok",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    e.token(t, usr),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, stored),
		},
	})
}

func Test_userApi_update(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada", "ada@test.cd", pwd, user.RoleStudent)
	token := e.token(t, usr)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "password mismatch",
			method:   http.MethodPut,
			path:     "/v1/users/me",
			body:     []byte(`{"password": "N3wPassword", "password_confirm": "N3wPasswor"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bio",
			method:   http.MethodPut,
			path:     "/v1/users/me",
			body:     []byte(`{"bio": " Loves algebra "}`),
			token:    token,
			wantCode: http.StatusOK,
		},
	})

	stored, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Loves algebra", stored.Bio)
	assert.Equal(t, "ada", stored.Username)
	assert.NoError(t, stored.CheckPassword(pwd))
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada", "ada@test.cd", pwd, user.RoleStudent)

	staleToken, err := GenerateToken(e.conf, GetUserClaims(e.conf, usr, time.Now().Add(-2*time.Hour).Unix()))
	require.NoError(t, err)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/v1/users/token-refresh",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "refresh expired",
			method:   http.MethodPost,
			path:     "/v1/users/token-refresh",
			token:    staleToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name:     "ok",
			method:   http.MethodPost,
			path:     "/v1/users/token-refresh",
			token:    e.token(t, usr),
			wantCode: http.StatusOK,
		},
	})
}

func Test_userApi_destroy(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada", "ada@test.cd", pwd, user.RoleStudent)
	token := e.token(t, usr)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/users/me", token)
	e.do(req, rec)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	assert.Equal(t, user.ErrNotFound, err)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", token)
	e.do(req, rec)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
