package academic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/tests"
)

func TestService_AddSlot(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(school.Admin)

	other, err := env.AcademicSvc.CreateSection(ctx, academic.NewClassSection{
		AcademicYearID: school.Year.ID,
		GradeID:        school.Grade.ID,
		Code:           testutil.Code("7B"),
		Shift:          "morning",
		Capacity:       30,
	})
	require.NoError(t, err)
	otherTeacher := testutil.CreateTeacher(t, env, ctx, "Prof. Luísa")
	testutil.QualifyTeacher(t, env, ctx, otherTeacher.ID, school.Subject.ID)
	unqualified := testutil.CreateTeacher(t, env, ctx, "Prof. Tomé")
	room := school.Room.ID

	_, err = env.AcademicSvc.AddSlot(ctx, academic.NewTimetableSlot{
		SectionID: school.Section.ID, SubjectID: school.Subject.ID, TeacherID: school.Teacher.ID,
		RoomID: &room, Weekday: 1, StartsAt: "8:00", EndsAt: "09:30",
	})
	require.NoError(t, err, "first slot")

	tests := []struct {
		name      string
		slot      academic.NewTimetableSlot
		wantField string
	}{
		{
			name:      "same section overlaps",
			slot:      academic.NewTimetableSlot{SectionID: school.Section.ID, TeacherID: otherTeacher.ID, Weekday: 1, StartsAt: "09:00", EndsAt: "10:00"},
			wantField: "section_id",
		},
		{
			name:      "teacher double booked",
			slot:      academic.NewTimetableSlot{SectionID: other.ID, TeacherID: school.Teacher.ID, Weekday: 1, StartsAt: "08:30", EndsAt: "09:00"},
			wantField: "teacher_id",
		},
		{
			name:      "room double booked",
			slot:      academic.NewTimetableSlot{SectionID: other.ID, TeacherID: otherTeacher.ID, RoomID: &room, Weekday: 1, StartsAt: "07:00", EndsAt: "08:01"},
			wantField: "room_id",
		},
		{
			name:      "ends before it starts",
			slot:      academic.NewTimetableSlot{SectionID: other.ID, TeacherID: otherTeacher.ID, Weekday: 2, StartsAt: "10:00", EndsAt: "09:00"},
			wantField: "ends_at",
		},
		{
			name:      "teacher not qualified",
			slot:      academic.NewTimetableSlot{SectionID: other.ID, TeacherID: unqualified.ID, Weekday: 3, StartsAt: "08:00", EndsAt: "09:00"},
			wantField: "teacher_id",
		},
		{
			name: "back to back",
			slot: academic.NewTimetableSlot{SectionID: school.Section.ID, TeacherID: school.Teacher.ID, RoomID: &room, Weekday: 1, StartsAt: "09:30", EndsAt: "10:15"},
		},
		{
			name: "another day",
			slot: academic.NewTimetableSlot{SectionID: school.Section.ID, TeacherID: school.Teacher.ID, RoomID: &room, Weekday: 2, StartsAt: "08:00", EndsAt: "09:30"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.slot.SubjectID = school.Subject.ID
			_, err := env.AcademicSvc.AddSlot(ctx, tt.slot)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.True(t, core.IsValidationError(err), "err = %v", err)
			assert.Equal(t, tt.wantField, err.(*core.ValidationError).Fields[0].Field)
		})
	}

	slots, err := env.AcademicSvc.TeacherTimetable(ctx, school.Teacher.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 3)

	require.NoError(t, env.AcademicSvc.RemoveSlot(ctx, slots[0].ID))
	assert.True(t, core.IsNotFound(env.AcademicSvc.RemoveSlot(ctx, slots[0].ID)))
}

func TestService_SectionOccupancy(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 4)
	ctx := testutil.Ctx(school.Admin)

	occ, err := env.AcademicSvc.SectionOccupancy(ctx, school.Section.ID)
	require.NoError(t, err)
	assert.Zero(t, occ.Active)
	assert.Equal(t, 4, occ.Available)
	assert.True(t, occ.Occupancy.IsZero())

	testutil.Enroll(t, env, school, "Aluno Um", nil)
	e := testutil.Enroll(t, env, school, "Aluno Dois", nil)
	testutil.Enroll(t, env, school, "Aluno Três", nil)
	_, err = env.EnrollmentSvc.Cancel(ctx, e.ID, "moved away")
	require.NoError(t, err)

	occ, err = env.AcademicSvc.SectionOccupancy(ctx, school.Section.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, occ.Active)
	assert.Equal(t, 2, occ.Available)
	assert.Equal(t, "50", occ.Occupancy.String())
}

func TestService_CreateYear(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 4)
	ctx := testutil.Ctx(school.Admin)

	dup := academic.NewAcademicYear{
		InstitutionID: school.Institution.ID,
		Year:          school.Year.Year,
		Code:          testutil.Code("AY"),
		Name:          "again",
		StartsOn:      school.Year.StartsOn,
		EndsOn:        school.Year.EndsOn,
	}
	_, err := env.AcademicSvc.CreateYear(ctx, dup)
	assert.Equal(t, academic.ErrYearExists, testutil.Cause(err))

	dup.Year++
	dup.EndsOn = dup.StartsOn
	_, err = env.AcademicSvc.CreateYear(ctx, dup)
	assert.True(t, core.IsValidationError(err), "ends_on before starts_on")

	closed, err := env.AcademicSvc.CloseYear(ctx, school.Year.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	assert.False(t, closed.IsEnrollmentOpen(core.Today()))
}

func TestService_QualifyTeacher(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(school.Admin)

	teacher := testutil.CreateTeacher(t, env, ctx, "Prof. Ana")
	student := testutil.CreateStudent(t, env, ctx, "Aluna Rosa")

	tests := []struct {
		name      string
		nts       academic.NewTeacherSubject
		wantErr   error // cause
		wantField string
		invalid   bool
	}{
		{
			name: "qualified",
			nts:  academic.NewTeacherSubject{TeacherID: teacher.ID, SubjectID: school.Subject.ID, Level: " Master ", YearsExperience: 6, Preferred: true},
		},
		{
			name:      "same subject twice",
			nts:       academic.NewTeacherSubject{TeacherID: teacher.ID, SubjectID: school.Subject.ID, Level: "doctorate"},
			wantErr:   academic.ErrQualified,
			wantField: "subject_id",
		},
		{
			name:    "unknown level",
			nts:     academic.NewTeacherSubject{TeacherID: school.Teacher.ID, SubjectID: school.Subject.ID, Level: "phd"},
			invalid: true,
		},
		{
			name:    "not a teacher",
			nts:     academic.NewTeacherSubject{TeacherID: student.ID, SubjectID: school.Subject.ID, Level: "bachelor"},
			wantErr: academic.ErrTeacherNotFound,
		},
		{
			name:    "unknown subject",
			nts:     academic.NewTeacherSubject{TeacherID: teacher.ID, SubjectID: school.Grade.ID, Level: "bachelor"},
			wantErr: academic.ErrSubjectNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := env.AcademicSvc.QualifyTeacher(ctx, tt.nts)
			switch {
			case tt.wantField != "":
				verr, ok := err.(*core.ValidationError)
				require.True(t, ok, "err = %v", err)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
				assert.Equal(t, tt.wantErr, testutil.Cause(err))
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, testutil.Cause(err))
			case tt.invalid:
				assert.True(t, core.IsValidationError(err), "err = %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, academic.LevelMaster, ts.Level)
				assert.True(t, ts.IsActive)
			}
		})
	}

	tss, err := env.AcademicSvc.QueryTeacherSubjects(ctx, academic.TeacherSubjectFilter{SubjectID: school.Subject.ID})
	require.NoError(t, err)
	require.Len(t, tss, 2)
	assert.Equal(t, teacher.ID, tss[0].TeacherID, "preferred first")
}

func TestService_UpdateTeacherSubject(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(school.Admin)

	tss, err := env.AcademicSvc.QueryTeacherSubjects(ctx, academic.TeacherSubjectFilter{TeacherID: school.Teacher.ID})
	require.NoError(t, err)
	require.Len(t, tss, 1)

	ts, err := env.AcademicSvc.UpdateTeacherSubject(ctx, tss[0].ID, academic.UpdateTeacherSubject{
		Level:           "doctorate",
		YearsExperience: core.IntPtr(12),
		IsActive:        core.BoolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, academic.LevelDoctorate, ts.Level)
	assert.Equal(t, 12, ts.YearsExperience)
	assert.False(t, ts.IsActive)

	active, err := env.AcademicSvc.QueryTeacherSubjects(ctx, academic.TeacherSubjectFilter{TeacherID: school.Teacher.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = env.AcademicSvc.AddSlot(ctx, academic.NewTimetableSlot{
		SectionID: school.Section.ID, SubjectID: school.Subject.ID, TeacherID: school.Teacher.ID,
		Weekday: 1, StartsAt: "08:00", EndsAt: "09:00",
	})
	require.True(t, core.IsValidationError(err), "inactive qualification, err = %v", err)
	assert.Equal(t, "teacher_id", err.(*core.ValidationError).Fields[0].Field)

	_, err = env.AcademicSvc.UpdateTeacherSubject(ctx, school.Subject.ID, academic.UpdateTeacherSubject{Preferred: core.BoolPtr(true)})
	assert.Equal(t, academic.ErrQualificationNotFound, err)
}
