package enrollment_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/tests"
)

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 2)
	ctx := testutil.Ctx(school.Admin)

	first := testutil.Enroll(t, env, school, "Ana", nil)
	assert.Equal(t, fmt.Sprintf("%d/00001", school.Year.Year), first.Number)
	assert.Equal(t, enrollment.StatusActive, first.Status)
	assert.Equal(t, school.Year.ID, first.AcademicYearID)

	second := testutil.Enroll(t, env, school, "Bruno", nil)
	assert.Equal(t, fmt.Sprintf("%d/00002", school.Year.Year), second.Number)

	late := testutil.CreateStudent(t, env, ctx, "Carla")
	dropped := testutil.CreateStudent(t, env, ctx, "Dário")
	_, err := env.PeopleSvc.SetStudentStatus(ctx, dropped.ID, "suspended")
	require.NoError(t, err)

	tests := []struct {
		name    string
		ne      enrollment.NewEnrollment
		wantErr error
	}{
		{name: "section full", ne: enrollment.NewEnrollment{StudentID: late.ID, SectionID: school.Section.ID}, wantErr: enrollment.ErrSectionFull},
		{name: "already enrolled", ne: enrollment.NewEnrollment{StudentID: first.StudentID, SectionID: school.Section.ID}, wantErr: enrollment.ErrAlreadyEnrolled},
		{name: "unknown section", ne: enrollment.NewEnrollment{StudentID: late.ID, SectionID: "00000000-0000-0000-0000-000000000000"}, wantErr: academic.ErrSectionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.EnrollmentSvc.Enroll(ctx, tt.ne)
			assert.Equal(t, tt.wantErr, testutil.Cause(err))
		})
	}

	_, err = env.EnrollmentSvc.Enroll(ctx, enrollment.NewEnrollment{StudentID: dropped.ID, SectionID: school.Section.ID})
	assert.True(t, core.IsValidationError(err), "inactive student")

	// a cancellation frees a seat
	_, err = env.EnrollmentSvc.Cancel(ctx, second.ID, "")
	require.NoError(t, err)
	_, err = env.EnrollmentSvc.Enroll(ctx, enrollment.NewEnrollment{StudentID: late.ID, SectionID: school.Section.ID})
	require.NoError(t, err)

	_, err = env.EnrollmentSvc.Cancel(ctx, second.ID, "")
	assert.Equal(t, enrollment.ErrNotActive, testutil.Cause(err))
}

func TestService_Enroll_closedYear(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 10)
	ctx := testutil.Ctx(school.Admin)

	_, err := env.AcademicSvc.CloseYear(ctx, school.Year.ID)
	require.NoError(t, err)

	sd := testutil.CreateStudent(t, env, ctx, "Eva")
	_, err = env.EnrollmentSvc.Enroll(ctx, enrollment.NewEnrollment{StudentID: sd.ID, SectionID: school.Section.ID})
	assert.Equal(t, enrollment.ErrEnrollmentClosed, testutil.Cause(err))
}

func TestService_Transfer(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 10)
	ctx := testutil.Ctx(school.Admin)

	tiny, err := env.AcademicSvc.CreateSection(ctx, academic.NewClassSection{
		AcademicYearID: school.Year.ID,
		GradeID:        school.Grade.ID,
		Code:           testutil.Code("7C"),
		Shift:          "afternoon",
		Capacity:       1,
	})
	require.NoError(t, err)

	a := testutil.Enroll(t, env, school, "Filipe", nil)
	b := testutil.Enroll(t, env, school, "Gil", nil)

	_, err = env.EnrollmentSvc.Transfer(ctx, a.ID, school.Section.ID)
	assert.True(t, core.IsValidationError(err), "same section")

	moved, err := env.EnrollmentSvc.Transfer(ctx, a.ID, tiny.ID)
	require.NoError(t, err)
	assert.Equal(t, tiny.ID, moved.SectionID)
	assert.Equal(t, a.Number, moved.Number)

	_, err = env.EnrollmentSvc.Transfer(ctx, b.ID, tiny.ID)
	assert.Equal(t, enrollment.ErrSectionFull, testutil.Cause(err))

	n, err := env.EnrollmentSvc.CountActive(ctx, school.Section.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
