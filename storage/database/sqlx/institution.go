package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/institution"
)

var (
	institutionColumns = columns{
		"id", "med_code", "name", "trade_name", "kind", "nif", "permit_number", "authorized_on", "founded_on",
		"email", "phone", "website", "province", "municipality", "neighbourhood", "street", "currency",
		"language", "timezone", "director", "school_days", "is_active", "created_at", "updated_at",
	}
	campusColumns = columns{
		"id", "institution_id", "code", "name", "province", "municipality", "street", "phone", "email",
		"student_capacity", "director", "is_active", "created_at",
	}
	blockColumns = columns{
		"id", "campus_id", "code", "name", "floors", "condition", "has_elevator", "has_ramp", "created_at",
	}
	roomColumns = columns{
		"id", "campus_id", "block_id", "code", "name", "kind", "capacity", "floor", "has_projector",
		"has_air_conditioning", "has_internet", "computers", "available", "maintenance_until", "created_at",
	}
	settingsColumns = columns{
		"id", "institution_id", "pass_mark", "max_mark", "min_attendance_pct", "max_unexcused_absences",
		"tuition_due_day", "grace_days", "daily_interest_pct", "late_penalty_pct", "sibling_discount_pct",
		"punctuality_discount_pct", "staff_discount_pct", "max_login_attempts", "session_minutes", "updated_at",
	}
	licenseColumns = columns{
		"id", "institution_id", "code", "product", "version", "activated_on", "expires_on", "max_users",
		"max_students", "modules", "is_active", "auto_renew", "created_at",
	}
)

type institutionRepository struct {
	repository
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *sqlx.DB) *institutionRepository {
	return &institutionRepository{repository{db: db}}
}

func (repo institutionRepository) CheckInstitutionUniqueness(ctx context.Context, medCode, nif string, exec ...core.DBExecutor) error {
	var found []struct {
		MEDCode string `db:"med_code"`
		NIF     string `db:"nif"`
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &found,
		"SELECT med_code, nif FROM institutions WHERE med_code = $1 OR nif = $2", medCode, nif)
	if err != nil {
		return errors.Wrap(err, "checking institution uniqueness")
	}
	for _, f := range found {
		if f.MEDCode == medCode {
			return institution.ErrMEDCodeExists
		}
	}
	if len(found) > 0 {
		return institution.ErrNIFExists
	}
	return nil
}

func (repo institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution, exec ...core.DBExecutor) (institution.Institution, error) {
	inst.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), institutionColumns.insert("institutions"), inst); err != nil {
		return institution.Institution{}, trapUniqueErr(err, "inserting institution")
	}
	return inst, nil
}

func (repo institutionRepository) GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (institution.Institution, error) {
	if !validID(id) {
		return institution.Institution{}, institution.ErrNotFound
	}
	var inst institution.Institution
	err := sqlx.GetContext(ctx, repo.getExec(exec), &inst, institutionColumns.selectFrom("institutions")+" WHERE id = $1", id)
	if err != nil {
		return institution.Institution{}, trapNoRowsErr(err, institution.ErrNotFound, "getting institution")
	}
	return inst, nil
}

func (repo institutionRepository) QueryInstitutions(ctx context.Context, exec ...core.DBExecutor) ([]institution.Institution, error) {
	insts := make([]institution.Institution, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &insts, institutionColumns.selectFrom("institutions")+" ORDER BY name")
	return insts, errors.Wrap(err, "querying institutions")
}

func (repo institutionRepository) UpdateInstitution(ctx context.Context, inst institution.Institution, exec ...core.DBExecutor) (institution.Institution, error) {
	if err := namedExec(ctx, repo.getExec(exec), institutionColumns.update("institutions"), inst); err != nil {
		return institution.Institution{}, trapNoRowsErr(err, institution.ErrNotFound, "updating institution")
	}
	return inst, nil
}

func (repo institutionRepository) DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return institution.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM institutions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting institution")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return institution.ErrNotFound
	}
	return nil
}

func (repo institutionRepository) CampusCodeExists(ctx context.Context, institutionID, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM campuses WHERE institution_id = $1 AND code = $2", institutionID, code)
	return ok, errors.Wrap(err, "checking campus code")
}

func (repo institutionRepository) CreateCampus(ctx context.Context, c institution.Campus, exec ...core.DBExecutor) (institution.Campus, error) {
	c.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), campusColumns.insert("campuses"), c); err != nil {
		return institution.Campus{}, trapUniqueErr(err, "inserting campus")
	}
	return c, nil
}

func (repo institutionRepository) GetCampus(ctx context.Context, id string, exec ...core.DBExecutor) (institution.Campus, error) {
	if !validID(id) {
		return institution.Campus{}, institution.ErrCampusNotFound
	}
	var c institution.Campus
	err := sqlx.GetContext(ctx, repo.getExec(exec), &c, campusColumns.selectFrom("campuses")+" WHERE id = $1", id)
	if err != nil {
		return institution.Campus{}, trapNoRowsErr(err, institution.ErrCampusNotFound, "getting campus")
	}
	return c, nil
}

func (repo institutionRepository) QueryCampuses(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]institution.Campus, error) {
	campuses := make([]institution.Campus, 0)
	if !validID(institutionID) {
		return campuses, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &campuses,
		campusColumns.selectFrom("campuses")+" WHERE institution_id = $1 ORDER BY code", institutionID)
	return campuses, errors.Wrap(err, "querying campuses")
}

func (repo institutionRepository) BlockCodeExists(ctx context.Context, campusID, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM blocks WHERE campus_id = $1 AND code = $2", campusID, code)
	return ok, errors.Wrap(err, "checking block code")
}

func (repo institutionRepository) CreateBlock(ctx context.Context, b institution.Block, exec ...core.DBExecutor) (institution.Block, error) {
	b.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), blockColumns.insert("blocks"), b); err != nil {
		return institution.Block{}, trapUniqueErr(err, "inserting block")
	}
	return b, nil
}

func (repo institutionRepository) GetBlock(ctx context.Context, id string, exec ...core.DBExecutor) (institution.Block, error) {
	if !validID(id) {
		return institution.Block{}, institution.ErrBlockNotFound
	}
	var b institution.Block
	err := sqlx.GetContext(ctx, repo.getExec(exec), &b, blockColumns.selectFrom("blocks")+" WHERE id = $1", id)
	if err != nil {
		return institution.Block{}, trapNoRowsErr(err, institution.ErrBlockNotFound, "getting block")
	}
	return b, nil
}

func (repo institutionRepository) QueryBlocks(ctx context.Context, campusID string, exec ...core.DBExecutor) ([]institution.Block, error) {
	blocks := make([]institution.Block, 0)
	if !validID(campusID) {
		return blocks, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &blocks,
		blockColumns.selectFrom("blocks")+" WHERE campus_id = $1 ORDER BY code", campusID)
	return blocks, errors.Wrap(err, "querying blocks")
}

func (repo institutionRepository) RoomCodeExists(ctx context.Context, campusID, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM rooms WHERE campus_id = $1 AND code = $2", campusID, code)
	return ok, errors.Wrap(err, "checking room code")
}

func (repo institutionRepository) CreateRoom(ctx context.Context, r institution.Room, exec ...core.DBExecutor) (institution.Room, error) {
	r.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), roomColumns.insert("rooms"), r); err != nil {
		return institution.Room{}, trapUniqueErr(err, "inserting room")
	}
	return r, nil
}

func (repo institutionRepository) GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (institution.Room, error) {
	if !validID(id) {
		return institution.Room{}, institution.ErrRoomNotFound
	}
	var r institution.Room
	err := sqlx.GetContext(ctx, repo.getExec(exec), &r, roomColumns.selectFrom("rooms")+" WHERE id = $1", id)
	if err != nil {
		return institution.Room{}, trapNoRowsErr(err, institution.ErrRoomNotFound, "getting room")
	}
	return r, nil
}

func (repo institutionRepository) QueryRooms(ctx context.Context, campusID string, exec ...core.DBExecutor) ([]institution.Room, error) {
	rooms := make([]institution.Room, 0)
	if !validID(campusID) {
		return rooms, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rooms,
		roomColumns.selectFrom("rooms")+" WHERE campus_id = $1 ORDER BY code", campusID)
	return rooms, errors.Wrap(err, "querying rooms")
}

func (repo institutionRepository) UpdateRoom(ctx context.Context, r institution.Room, exec ...core.DBExecutor) (institution.Room, error) {
	if err := namedExec(ctx, repo.getExec(exec), roomColumns.update("rooms"), r); err != nil {
		return institution.Room{}, trapNoRowsErr(err, institution.ErrRoomNotFound, "updating room")
	}
	return r, nil
}

func (repo institutionRepository) GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.Settings, error) {
	return getSettings(ctx, repo.getExec(exec), institutionID)
}

func getSettings(ctx context.Context, exec sqlx.ExtContext, institutionID string) (institution.Settings, error) {
	if !validID(institutionID) {
		return institution.Settings{}, institution.ErrSettingsNotFound
	}
	var s institution.Settings
	err := sqlx.GetContext(ctx, exec, &s,
		settingsColumns.selectFrom("settings")+" WHERE institution_id = $1", institutionID)
	if err != nil {
		return institution.Settings{}, trapNoRowsErr(err, institution.ErrSettingsNotFound, "getting settings")
	}
	return s, nil
}

// SaveSettings inserts the settings of the institution or replaces the existing ones.
func (repo institutionRepository) SaveSettings(ctx context.Context, s institution.Settings, exec ...core.DBExecutor) (institution.Settings, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	sets := make([]string, 0, len(settingsColumns))
	for _, c := range settingsColumns[2:] {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	q := settingsColumns.insert("settings") + " ON CONFLICT (institution_id) DO UPDATE SET " + columns(sets).list()
	if err := namedExec(ctx, repo.getExec(exec), q, s); err != nil {
		return institution.Settings{}, errors.Wrap(err, "saving settings")
	}
	return repo.GetSettings(ctx, s.InstitutionID, exec...)
}

func (repo institutionRepository) CreateLicense(ctx context.Context, l institution.License, exec ...core.DBExecutor) (institution.License, error) {
	l.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), licenseColumns.insert("licenses"), l); err != nil {
		return institution.License{}, trapUniqueErr(err, "inserting license")
	}
	return l, nil
}

func (repo institutionRepository) GetLicense(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.License, error) {
	if !validID(institutionID) {
		return institution.License{}, institution.ErrLicenseNotFound
	}
	var l institution.License
	err := sqlx.GetContext(ctx, repo.getExec(exec), &l,
		licenseColumns.selectFrom("licenses")+" WHERE institution_id = $1 ORDER BY activated_on DESC, created_at DESC LIMIT 1", institutionID)
	if err != nil {
		return institution.License{}, trapNoRowsErr(err, institution.ErrLicenseNotFound, "getting license")
	}
	return l, nil
}
