package grading_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/tests"
)

func TestWeightedAverage(t *testing.T) {
	mark := func(v, w string) grading.Mark {
		return grading.Mark{Value: testutil.Dec(v), Weight: testutil.Dec(w)}
	}
	tests := []struct {
		name  string
		marks []grading.Mark
		want  string
	}{
		{name: "no marks", want: "0"},
		{name: "single", marks: []grading.Mark{mark("13.5", "1")}, want: "13.5"},
		{name: "weighted", marks: []grading.Mark{mark("12", "1"), mark("16", "3")}, want: "15"},
		{name: "rounded", marks: []grading.Mark{mark("10", "1"), mark("11", "1"), mark("11", "1")}, want: "10.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grading.WeightedAverage(tt.marks).String())
		})
	}
}

func TestResultOf(t *testing.T) {
	pass, minAtt := decimal.NewFromInt(10), decimal.NewFromInt(75)
	tests := []struct {
		avg, att string
		want     string
	}{
		{"10", "75", grading.ResultApproved},
		{"18", "74.99", grading.ResultFailed},
		{"8", "100", grading.ResultRecovery},
		{"9.99", "80", grading.ResultRecovery},
		{"7.99", "100", grading.ResultFailed},
	}
	for _, tt := range tests {
		got := grading.ResultOf(testutil.Dec(tt.avg), testutil.Dec(tt.att), pass, minAtt)
		assert.Equal(t, tt.want, got, "average %s attendance %s", tt.avg, tt.att)
	}
}

func TestService_CloseRecords(t *testing.T) {
	testutil.FreezeClock(t, time.Date(2025, time.October, 10, 9, 0, 0, 0, time.UTC))
	env := testutil.NewEnv(t)
	s := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(s.Admin)

	good := testutil.Enroll(t, env, s, "Ana", nil)
	fair := testutil.Enroll(t, env, s, "Beto", nil)
	poor := testutil.Enroll(t, env, s, "Carla", nil)

	addMark := func(studentID, value, weight string) {
		t.Helper()
		_, err := env.GradingSvc.AddMark(ctx, grading.NewMark{
			StudentID: studentID, SectionID: s.Section.ID, SubjectID: s.Subject.ID,
			Term: 1, Kind: grading.KindWrittenTest, Value: testutil.Dec(value), Weight: testutil.Dec(weight),
		})
		require.NoError(t, err)
	}
	addMark(good.StudentID, "12", "1")
	addMark(good.StudentID, "16", "3")
	addMark(fair.StudentID, "9", "1")
	addMark(poor.StudentID, "5", "0")

	attend := func(studentID string, day int, present bool) error {
		_, err := env.GradingSvc.RecordAttendance(ctx, grading.NewAttendance{
			StudentID: studentID, SectionID: s.Section.ID, SubjectID: s.Subject.ID,
			Day: core.Date(2025, time.October, day), Present: present,
		})
		return err
	}
	for day, present := range map[int]bool{6: true, 7: true, 8: false, 9: true} {
		require.NoError(t, attend(good.StudentID, day, present))
	}
	require.NoError(t, attend(poor.StudentID, 6, false))

	assert.Equal(t, grading.ErrAttendanceExists, testutil.Cause(attend(poor.StudentID, 6, true)))
	assert.True(t, core.IsValidationError(attend(poor.StudentID, 11, true)), "future day")

	avg, err := env.GradingSvc.SubjectAverage(ctx, good.StudentID, s.Section.ID, s.Subject.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "15", avg.String())
	rate, err := env.GradingSvc.AttendanceRate(ctx, good.StudentID, s.Section.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "75", rate.String())

	records, err := env.GradingSvc.CloseRecords(ctx, s.Section.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	results := make(map[string]grading.Record, len(records))
	for _, r := range records {
		results[r.StudentID] = r
	}
	assert.Equal(t, grading.ResultApproved, results[good.StudentID].Result)
	assert.Equal(t, grading.ResultRecovery, results[fair.StudentID].Result)
	assert.Equal(t, "100", results[fair.StudentID].AttendanceRate.String())
	assert.Equal(t, grading.ResultFailed, results[poor.StudentID].Result)

	// closing again replaces the records
	_, err = env.GradingSvc.CloseRecords(ctx, s.Section.ID)
	require.NoError(t, err)
	stored, err := env.GradingSvc.QueryRecords(ctx, grading.RecordFilter{SectionID: s.Section.ID})
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	_, err = env.AcademicSvc.CloseYear(ctx, s.Year.ID)
	require.NoError(t, err)
	_, err = env.GradingSvc.CloseRecords(ctx, s.Section.ID)
	assert.Equal(t, grading.ErrYearClosed, testutil.Cause(err))
}

func TestService_AddMark_rejected(t *testing.T) {
	env := testutil.NewEnv(t)
	s := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(s.Admin)
	e := testutil.Enroll(t, env, s, "Ana", nil)
	outsider := testutil.CreateStudent(t, env, ctx, "Zeca")

	tests := []struct {
		name    string
		nm      grading.NewMark
		wantErr error
	}{
		{
			name:    "not enrolled",
			nm:      grading.NewMark{StudentID: outsider.ID, SectionID: s.Section.ID, SubjectID: s.Subject.ID, Term: 1, Kind: "quiz", Value: testutil.Dec("10")},
			wantErr: grading.ErrNotEnrolled,
		},
		{
			name:    "subject of another grade",
			nm:      grading.NewMark{StudentID: e.StudentID, SectionID: s.Section.ID, SubjectID: "00000000-0000-0000-0000-000000000000", Term: 1, Kind: "quiz", Value: testutil.Dec("10")},
			wantErr: grading.ErrSubjectNotTaught,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.GradingSvc.AddMark(ctx, tt.nm)
			assert.Equal(t, tt.wantErr, testutil.Cause(err))
		})
	}

	_, err := env.GradingSvc.AddMark(ctx, grading.NewMark{
		StudentID: e.StudentID, SectionID: s.Section.ID, SubjectID: s.Subject.ID, Term: 1, Kind: "quiz", Value: testutil.Dec("20.5"),
	})
	assert.Error(t, err, "above the maximum mark")

	m, err := env.GradingSvc.AddMark(ctx, grading.NewMark{
		StudentID: e.StudentID, SectionID: s.Section.ID, SubjectID: s.Subject.ID, Term: 2, Kind: " Exam ", Value: testutil.Dec("14.256"),
	})
	require.NoError(t, err)
	assert.Equal(t, grading.KindExam, m.Kind)
	assert.Equal(t, "14.26", m.Value.String())
	assert.Equal(t, "1", m.Weight.String())
	assert.Equal(t, s.Admin.ID, m.TeacherID)
}
