package people_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

func TestService_Roles(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)

	sd, err := env.PeopleSvc.RegisterStudent(ctx,
		people.NewPerson{FullName: "Nzinga Mbande", Gender: "F", DocumentType: "bi", DocumentNumber: "004512LA041"},
		people.NewStudent{Code: "AL-0001"},
	)
	require.NoError(t, err)
	assert.Equal(t, people.StudentActive, sd.Student.Status)

	_, err = env.PeopleSvc.RegisterStudent(ctx,
		people.NewPerson{FullName: "Outra", DocumentType: "bi", DocumentNumber: "004512LA041"},
		people.NewStudent{Code: "AL-0002"},
	)
	assert.Equal(t, people.ErrDocumentExists, testutil.Cause(err))

	_, err = env.PeopleSvc.RegisterStudent(ctx, people.NewPerson{FullName: "Outra"}, people.NewStudent{Code: "AL-0001"})
	assert.Equal(t, people.ErrCodeExists, testutil.Cause(err))
	found, err := env.PeopleSvc.Search(ctx, people.QueryFilter{Search: "Outra"})
	require.NoError(t, err)
	assert.Empty(t, found, "a failed registration leaves no person behind")

	_, err = env.PeopleSvc.AddStudent(ctx, sd.ID, people.NewStudent{Code: "AL-0003"})
	assert.Equal(t, people.ErrRoleExists, testutil.Cause(err))

	// a student's mother also works at the school
	mother, err := env.PeopleSvc.Create(ctx, people.NewPerson{FullName: "Ginga Mbande", Gender: "F"})
	require.NoError(t, err)
	_, err = env.PeopleSvc.AddGuardian(ctx, mother.ID, people.NewGuardian{Occupation: " Professora "})
	require.NoError(t, err)
	testutil.CreateTeacher(t, env, ctx, "Not the mother")
	roles, err := env.PeopleSvc.Roles(ctx, mother.ID)
	require.NoError(t, err)
	assert.Equal(t, people.Roles{Guardian: true}, roles)

	teachers, err := env.PeopleSvc.Search(ctx, people.QueryFilter{Role: "teacher"})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	_, err = env.PeopleSvc.Search(ctx, people.QueryFilter{Role: "janitor"})
	assert.Error(t, err)

	_, err = env.PeopleSvc.Roles(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, core.IsNotFound(err))
}

func TestService_LinkGuardian(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)
	student := testutil.CreateStudent(t, env, ctx, "Kiala")

	guardian := func(name string) people.Person {
		p, err := env.PeopleSvc.Create(ctx, people.NewPerson{FullName: name})
		require.NoError(t, err)
		_, err = env.PeopleSvc.AddGuardian(ctx, p.ID, people.NewGuardian{})
		require.NoError(t, err)
		return p
	}
	father, mother := guardian("Pai"), guardian("Mãe")

	_, err := env.PeopleSvc.LinkGuardian(ctx, student.ID, people.NewStudentGuardian{GuardianID: father.ID, Relationship: "father", IsPrimary: true})
	require.NoError(t, err)
	_, err = env.PeopleSvc.LinkGuardian(ctx, student.ID, people.NewStudentGuardian{GuardianID: father.ID, Relationship: "father"})
	assert.Equal(t, people.ErrAlreadyLinked, testutil.Cause(err))
	_, err = env.PeopleSvc.LinkGuardian(ctx, student.ID, people.NewStudentGuardian{GuardianID: mother.ID, Relationship: "mother", IsPrimary: true, FinanciallyResponsible: true})
	require.NoError(t, err)

	gs, err := env.PeopleSvc.Guardians(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	for _, g := range gs {
		assert.Equal(t, g.ID == mother.ID, g.Link.IsPrimary, "only the last primary guardian stays primary")
	}

	notGuardian := testutil.CreateStudent(t, env, ctx, "Irmão")
	_, err = env.PeopleSvc.LinkGuardian(ctx, student.ID, people.NewStudentGuardian{GuardianID: notGuardian.ID, Relationship: "brother"})
	assert.Equal(t, people.ErrGuardianNotFound, testutil.Cause(err))

	require.NoError(t, env.PeopleSvc.UnlinkGuardian(ctx, student.ID, father.ID))
	assert.Equal(t, people.ErrLinkNotFound, testutil.Cause(env.PeopleSvc.UnlinkGuardian(ctx, student.ID, father.ID)))
	gs, err = env.PeopleSvc.Guardians(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, gs, 1)
}

func TestService_IssueDocument(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)
	student := testutil.CreateStudent(t, env, ctx, "Aluno Kiala")

	issued := core.Date(2025, time.July, 20)
	until := core.Date(2026, time.July, 19)
	dayBefore := issued.AddDate(0, 0, -1)
	cert, err := env.PeopleSvc.IssueDocument(ctx, student.ID, people.NewStudentDocument{
		Kind:        " Certificate",
		Number:      "CERT-0001",
		Description: "Certificado de habilitações da 9ª classe",
		IssuedOn:    issued,
		ValidUntil:  &until,
	})
	require.NoError(t, err)
	assert.Equal(t, people.DocumentCertificate, cert.Kind)
	assert.True(t, cert.IsValid)
	require.NotNil(t, cert.IssuedBy)
	assert.Equal(t, admin.ID, *cert.IssuedBy)

	tests := []struct {
		name      string
		studentID string
		nd        people.NewStudentDocument
		wantErr   error // cause
		wantField string
		invalid   bool
	}{
		{
			name:      "number taken for the kind",
			studentID: student.ID,
			nd:        people.NewStudentDocument{Kind: "certificate", Number: "CERT-0001"},
			wantErr:   people.ErrDocNumberTaken,
			wantField: "number",
		},
		{
			name:      "same number for another kind",
			studentID: student.ID,
			nd:        people.NewStudentDocument{Kind: "declaration", Number: "CERT-0001", IssuedOn: issued},
		},
		{
			name:      "expires before it is issued",
			studentID: student.ID,
			nd:        people.NewStudentDocument{Kind: "attestation", Number: "AT-1", IssuedOn: issued, ValidUntil: &dayBefore},
			wantField: "valid_until",
		},
		{
			name:      "unknown kind",
			studentID: student.ID,
			nd:        people.NewStudentDocument{Kind: "diploma", Number: "D-1"},
			invalid:   true,
		},
		{
			name:      "not a student",
			studentID: admin.ID,
			nd:        people.NewStudentDocument{Kind: "transcript", Number: "T-1"},
			wantErr:   people.ErrStudentNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.PeopleSvc.IssueDocument(ctx, tt.studentID, tt.nd)
			switch {
			case tt.wantField != "":
				verr, ok := err.(*core.ValidationError)
				require.True(t, ok, "err = %v", err)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, testutil.Cause(err))
				}
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, testutil.Cause(err))
			case tt.invalid:
				assert.True(t, core.IsValidationError(err), "err = %v", err)
			default:
				require.NoError(t, err)
			}
		})
	}

	docs, err := env.PeopleSvc.Documents(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestService_DocumentLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)
	student := testutil.CreateStudent(t, env, ctx, "Aluna Weza")

	doc, err := env.PeopleSvc.IssueDocument(ctx, student.ID, people.NewStudentDocument{Kind: "transcript", Number: "HIST-7"})
	require.NoError(t, err)
	assert.True(t, doc.IssuedOn.Equal(core.Today()), "defaults to today")

	const digest = "7ce443e7454f7b96c17271855813a5f9e3bbadf575aab7d6eb13564e22c4cde0"
	_, err = env.PeopleSvc.AttachDocumentFile(ctx, doc.ID, "documents/x.pdf", "not-a-digest")
	require.True(t, core.IsValidationError(err))
	doc, err = env.PeopleSvc.AttachDocumentFile(ctx, doc.ID, "documents/"+doc.ID+".pdf", digest)
	require.NoError(t, err)
	assert.Equal(t, digest, doc.FileHash)

	_, err = env.PeopleSvc.InvalidateDocument(ctx, doc.ID, "  ")
	require.True(t, core.IsValidationError(err), "a reason is required")

	doc, err = env.PeopleSvc.InvalidateDocument(ctx, doc.ID, "issued with a wrong grade")
	require.NoError(t, err)
	assert.False(t, doc.IsValid)
	assert.False(t, doc.ValidOn(core.Today()))
	assert.Equal(t, "issued with a wrong grade", doc.InvalidationReason)

	_, err = env.PeopleSvc.InvalidateDocument(ctx, doc.ID, "again")
	assert.Equal(t, people.ErrDocInvalidated, testutil.Cause(err))

	_, err = env.PeopleSvc.GetDocument(ctx, student.ID)
	assert.Equal(t, people.ErrDocNotFound, err)
}
