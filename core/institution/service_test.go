package institution_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/tests"
)

func TestLicense_Status(t *testing.T) {
	today := core.Date(2025, time.July, 1)
	tests := []struct {
		name     string
		lic      institution.License
		wantDays int
		want     institution.LicenseStatus
	}{
		{name: "inactive", lic: institution.License{ExpiresOn: today.AddDate(1, 0, 0)}, want: institution.LicenseInactive},
		{name: "expired", lic: institution.License{IsActive: true, ExpiresOn: today.AddDate(0, 0, -1)}, want: institution.LicenseExpired},
		{name: "expires today", lic: institution.License{IsActive: true, ExpiresOn: today}, want: institution.LicenseExpired},
		{name: "expiring", lic: institution.License{IsActive: true, ExpiresOn: today.AddDate(0, 0, 30)}, wantDays: 30, want: institution.LicenseExpiring},
		{name: "active", lic: institution.License{IsActive: true, ExpiresOn: today.AddDate(0, 0, 31)}, wantDays: 31, want: institution.LicenseActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDays, tt.lic.DaysRemaining(today.Add(15*time.Hour)))
			assert.Equal(t, tt.want, tt.lic.Status(today))
		})
	}
}

func TestService_Institution(t *testing.T) {
	env := testutil.NewEnv(t)
	s := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(s.Admin)

	dup := institution.NewInstitution{
		MEDCode: s.Institution.MEDCode, Name: "Outra", Kind: "public", NIF: "9999999999", AuthorizedOn: core.Today(),
		Email: "outra@escola.ao", Province: "Huíla", Municipality: "Lubango", Neighbourhood: "Centro",
	}
	_, err := env.InstitutionSvc.Create(ctx, dup)
	assert.Equal(t, institution.ErrMEDCodeExists, testutil.Cause(err))
	dup.MEDCode, dup.NIF = testutil.Code("MED"), s.Institution.NIF
	_, err = env.InstitutionSvc.Create(ctx, dup)
	assert.Equal(t, institution.ErrNIFExists, testutil.Cause(err))

	settings, err := env.InstitutionSvc.Settings(ctx, s.Institution.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, settings.TuitionDueDay)
	assert.Equal(t, "75", settings.MinAttendancePct.String())

	bad := settings
	bad.PassMark = testutil.Dec("25")
	_, err = env.InstitutionSvc.UpdateSettings(ctx, s.Institution.ID, bad)
	assert.True(t, core.IsValidationError(err), "pass mark above the maximum mark")

	settings.GraceDays = 0
	settings.TuitionDueDay = 5
	_, err = env.InstitutionSvc.UpdateSettings(ctx, s.Institution.ID, settings)
	require.NoError(t, err)
	settings, err = env.InstitutionSvc.Settings(ctx, s.Institution.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, settings.GraceDays)
	assert.Equal(t, 5, settings.TuitionDueDay)

	_, err = env.InstitutionSvc.CreateRoom(ctx, institution.NewRoom{
		CampusID: s.Campus.ID, Code: s.Room.Code, Kind: "classroom", Capacity: 20,
	})
	assert.Equal(t, institution.ErrCodeExists, testutil.Cause(err))

	room, err := env.InstitutionSvc.UpdateRoom(ctx, s.Room.ID, institution.UpdateRoom{Available: core.BoolPtr(false)})
	require.NoError(t, err)
	assert.False(t, room.Available)
	assert.Equal(t, 40, room.Capacity)

	_, err = env.InstitutionSvc.License(ctx, s.Institution.ID, core.Today())
	assert.True(t, core.IsNotFound(err))
	_, err = env.InstitutionSvc.RegisterLicense(ctx, institution.NewLicense{
		InstitutionID: s.Institution.ID, Code: "LIC-1", Product: "SomaBem", Version: "2.0",
		ActivatedOn: core.Today(), ExpiresOn: core.Today().AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	info, err := env.InstitutionSvc.License(ctx, s.Institution.ID, core.Today())
	require.NoError(t, err)
	assert.Equal(t, 10, info.DaysRemaining)
	assert.Equal(t, institution.LicenseExpiring, info.Status)

	require.NoError(t, env.InstitutionSvc.Delete(ctx, s.Institution.ID))
	_, err = env.InstitutionSvc.Get(ctx, s.Institution.ID)
	assert.Equal(t, institution.ErrNotFound, err)
}
