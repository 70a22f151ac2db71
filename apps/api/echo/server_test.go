package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/somabem/erp/apps/api/echo"
	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

const pwd = "Kw4nz4-Sul!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func setup(t *testing.T) (*echoapi.Server, *testutil.Env) {
	env := testutil.NewEnv(t)
	srv := echoapi.NewServer(&echoapi.Deps{
		Conf:           env.Conf,
		Logger:         core.NopLogger{},
		Validate:       env.Validate,
		Translator:     env.Translator,
		Pool:           env.Pool,
		Images:         env.Images,
		Files:          env.Images,
		UserSvc:        env.UserSvc,
		InstitutionSvc: env.InstitutionSvc,
		AcademicSvc:    env.AcademicSvc,
		PeopleSvc:      env.PeopleSvc,
		EnrollmentSvc:  env.EnrollmentSvc,
		TuitionSvc:     env.TuitionSvc,
		CashierSvc:     env.CashierSvc,
		VendorSvc:      env.VendorSvc,
		InventorySvc:   env.InventorySvc,
		SalesSvc:       env.SalesSvc,
		GradingSvc:     env.GradingSvc,
		AuditSvc:       env.AuditSvc,
		ReportSvc:      env.ReportSvc,
	})
	return srv, env
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, srv *echoapi.Server, usr user.User) string {
	token, err := srv.Issuer().Token(usr)
	require.NoError(t, err, "Token()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "json.Marshal()")
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func TestServer_home(t *testing.T) {
	srv, _ := setup(t)
	req, rec := newAuthRequest(http.MethodGet, "/", "")
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to SomaBem API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	srv, env := setup(t)
	testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", pwd, []string{user.RoleStaffSecretariat}, true)
	testutil.CreateUser(t, env.UserRepo, "Antigo", "antigo", "antigo@school.ao", pwd, nil, false)

	creds := func(login, password string) []byte {
		return marshalObj(t, user.Credentials{Login: login, Password: password})
	}
	failed := marshalObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{name: "empty credentials", body: creds("", ""), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: creds("ninguem", pwd), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "wrong password", body: creds("caixa", "errada"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "deactivated", body: creds("antigo", pwd), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
		{name: "by username", body: creds("caixa", pwd), wantCode: http.StatusOK},
		{name: "by email", body: creds("CAIXA@school.ao", pwd), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/users/login", "", tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, "caixa", resp.User.Username)
				assert.Zero(t, resp.User.FailedLogins, "a good sign-in resets the failures")
			}
		})
	}
}

func Test_userApi_lockout(t *testing.T) {
	srv, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", pwd, []string{user.RoleStaffSecretariat}, true)

	login := func(password string) *httptest.ResponseRecorder {
		req, rec := newAuthRequest(http.MethodPost, "/api/users/login", "",
			marshalObj(t, user.Credentials{Login: "caixa", Password: password}))
		srv.ServeHTTP(rec, req)
		return rec
	}
	for i := 0; i < env.Conf.Auth.MaxFailedLogins; i++ {
		assert.Equal(t, http.StatusBadRequest, login("errada").Code)
	}

	rec := login(pwd)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, httpErr{Error: user.ErrAccountLocked.Error()})), rec.Body.String())

	locked, err := env.UserRepo.GetUser(testutil.Ctx(usr), usr.ID)
	require.NoError(t, err)
	assert.False(t, locked.IsActive)
	assert.True(t, locked.LockedAt.Valid)
}

func Test_authorization(t *testing.T) {
	srv, env := setup(t)
	clerk := testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", pwd, []string{user.RoleStaffSecretariat}, true)
	teacher := testutil.CreateUser(t, env.UserRepo, "Prof", "prof", "prof@school.ao", pwd, []string{user.RoleTeacher}, true)
	gone := testutil.CreateUser(t, env.UserRepo, "Saiu", "saiu", "saiu@school.ao", pwd, []string{user.RoleStaffSecretariat}, false)

	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	tests := []httpTest{
		{name: "auth required", path: "/api/sales", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/api/sales", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "module not granted", path: "/api/sales", token: getToken(t, srv, teacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "deactivated user", path: "/api/sales", token: getToken(t, srv, gone), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "granted", path: "/api/sales", token: getToken(t, srv, clerk), wantCode: http.StatusOK, wantData: []byte("[]")},
		{name: "teacher grades", path: "/api/grading/marks", token: getToken(t, srv, teacher), wantCode: http.StatusOK},
		{name: "me", path: "/api/users/me", token: getToken(t, srv, teacher), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_salesApi_checkout(t *testing.T) {
	srv, env := setup(t)
	clerk := testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", pwd, []string{user.RoleStaffSecretariat}, true)
	token := getToken(t, srv, clerk)
	ctx := testutil.Ctx(clerk)
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@school.ao", pwd, []string{user.RoleAdminSuper}, true)
	p := testutil.CreateProduct(t, env, testutil.Ctx(admin), "500", 5, 1)
	reg := testutil.OpenRegister(t, env, ctx)

	cart := func(method string, qty int) []byte {
		return marshalObj(t, sales.Cart{
			Lines:          []sales.CartLine{{ProductID: p.ID, Quantity: qty}},
			Method:         method,
			Tendered:       testutil.Dec("2000"),
			CashRegisterID: &reg.ID,
		})
	}

	tests := []httpTest{
		{name: "invalid method", body: cart("bitcoin", 1), wantCode: http.StatusBadRequest},
		{name: "insufficient stock", body: cart("cash", 6), wantCode: http.StatusBadRequest},
		{name: "ok", body: cart("cash", 2), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/sales/checkout", token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	ss, err := env.SalesSvc.Query(ctx, sales.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.Equal(t, "1000", ss[0].Final.String())
	assert.Equal(t, "1000", ss[0].Change.String())
	assert.Equal(t, clerk.ID, ss[0].EmployeeID, "the sale is attributed to the caller")

	t.Run("receipt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/sales/"+ss[0].ID+"/receipt", token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var rcpt sales.Receipt
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rcpt))
		require.Len(t, rcpt.Items, 1)
		assert.Equal(t, 2, rcpt.Items[0].Quantity)
	})

	t.Run("not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/sales/00000000-0000-0000-0000-000000000000", token)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("audited", func(t *testing.T) {
		entries, err := env.AuditSvc.Query(ctx, &audit.QueryFilter{UserID: clerk.ID, Module: string(core.ModuleSales)}, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	})
}

func Test_peopleApi_documentFile(t *testing.T) {
	srv, env := setup(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", pwd, []string{user.RoleAdminSuper}, true)
	token := getToken(t, srv, admin)
	ctx := testutil.Ctx(admin)
	student := testutil.CreateStudent(t, env, ctx, "Aluno Ngola")
	doc, err := env.PeopleSvc.IssueDocument(ctx, student.ID, people.NewStudentDocument{Kind: "declaration", Number: "DEC-12"})
	require.NoError(t, err)

	upload := func(field, filename, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/people/documents/"+doc.ID+"/file", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name     string
		field    string
		wantCode int
		wantHash string
	}{
		{name: "missing file", field: "other", wantCode: http.StatusBadRequest},
		{
			name: "stored", field: "file", wantCode: http.StatusOK,
			wantHash: "7ce443e7454f7b96c17271855813a5f9e3bbadf575aab7d6eb13564e22c4cde0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(tt.field, "Declaracao.PDF", "%PDF-1.4 certificado")
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantHash == "" {
				return
			}
			var got people.StudentDocument
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantHash, got.FileHash)
			assert.Equal(t, "documents/"+doc.ID+".pdf", got.FilePath)
		})
	}
}
