package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/institution"
)

type institutionRepository struct {
	db *DB
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *DB) *institutionRepository {
	return &institutionRepository{db: db}
}

func (repo *institutionRepository) CheckInstitutionUniqueness(_ context.Context, medCode, nif string, _ ...core.DBExecutor) error {
	if repo.db.institutions.exists(func(i institution.Institution) bool { return i.MEDCode == medCode }) {
		return institution.ErrMEDCodeExists
	}
	if repo.db.institutions.exists(func(i institution.Institution) bool { return i.NIF == nif }) {
		return institution.ErrNIFExists
	}
	return nil
}

func (repo *institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution, _ ...core.DBExecutor) (institution.Institution, error) {
	if err := repo.CheckInstitutionUniqueness(ctx, inst.MEDCode, inst.NIF); err != nil {
		return institution.Institution{}, err
	}
	inst.ID = uuid.NewString()
	repo.db.institutions.insert(inst.ID, inst)
	return inst, nil
}

func (repo *institutionRepository) GetInstitution(_ context.Context, id string, _ ...core.DBExecutor) (institution.Institution, error) {
	if inst, ok := repo.db.institutions.get(id); ok {
		return inst, nil
	}
	return institution.Institution{}, institution.ErrNotFound
}

func (repo *institutionRepository) QueryInstitutions(_ context.Context, _ ...core.DBExecutor) ([]institution.Institution, error) {
	return sortBy(repo.db.institutions.filter(nil), func(a, b institution.Institution) bool { return a.Name < b.Name }), nil
}

func (repo *institutionRepository) UpdateInstitution(_ context.Context, inst institution.Institution, _ ...core.DBExecutor) (institution.Institution, error) {
	if !repo.db.institutions.update(inst.ID, inst) {
		return institution.Institution{}, institution.ErrNotFound
	}
	return inst, nil
}

func (repo *institutionRepository) DeleteInstitution(_ context.Context, id string, _ ...core.DBExecutor) error {
	if _, ok := repo.db.institutions.get(id); !ok {
		return institution.ErrNotFound
	}
	campusIDs := repo.db.campuses.deleteWhere(
		func(c institution.Campus) bool { return c.InstitutionID == id },
		func(c institution.Campus) string { return c.ID },
	)
	inCampuses := func(campusID string) bool {
		for _, cid := range campusIDs {
			if cid == campusID {
				return true
			}
		}
		return false
	}
	repo.db.blocks.deleteWhere(
		func(b institution.Block) bool { return inCampuses(b.CampusID) },
		func(b institution.Block) string { return b.ID },
	)
	repo.db.rooms.deleteWhere(
		func(r institution.Room) bool { return inCampuses(r.CampusID) },
		func(r institution.Room) string { return r.ID },
	)
	repo.db.settings.deleteWhere(
		func(s institution.Settings) bool { return s.InstitutionID == id },
		func(s institution.Settings) string { return s.ID },
	)
	repo.db.licenses.deleteWhere(
		func(l institution.License) bool { return l.InstitutionID == id },
		func(l institution.License) string { return l.ID },
	)
	repo.db.institutions.delete(id)
	return nil
}

func (repo *institutionRepository) CampusCodeExists(_ context.Context, institutionID, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.campuses.exists(func(c institution.Campus) bool {
		return c.InstitutionID == institutionID && c.Code == code
	}), nil
}

func (repo *institutionRepository) CreateCampus(_ context.Context, c institution.Campus, _ ...core.DBExecutor) (institution.Campus, error) {
	c.ID = uuid.NewString()
	repo.db.campuses.insert(c.ID, c)
	return c, nil
}

func (repo *institutionRepository) GetCampus(_ context.Context, id string, _ ...core.DBExecutor) (institution.Campus, error) {
	if c, ok := repo.db.campuses.get(id); ok {
		return c, nil
	}
	return institution.Campus{}, institution.ErrCampusNotFound
}

func (repo *institutionRepository) QueryCampuses(_ context.Context, institutionID string, _ ...core.DBExecutor) ([]institution.Campus, error) {
	campuses := repo.db.campuses.filter(func(c institution.Campus) bool { return c.InstitutionID == institutionID })
	return sortBy(campuses, func(a, b institution.Campus) bool { return a.Code < b.Code }), nil
}

func (repo *institutionRepository) BlockCodeExists(_ context.Context, campusID, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.blocks.exists(func(b institution.Block) bool { return b.CampusID == campusID && b.Code == code }), nil
}

func (repo *institutionRepository) CreateBlock(_ context.Context, b institution.Block, _ ...core.DBExecutor) (institution.Block, error) {
	b.ID = uuid.NewString()
	repo.db.blocks.insert(b.ID, b)
	return b, nil
}

func (repo *institutionRepository) GetBlock(_ context.Context, id string, _ ...core.DBExecutor) (institution.Block, error) {
	if b, ok := repo.db.blocks.get(id); ok {
		return b, nil
	}
	return institution.Block{}, institution.ErrBlockNotFound
}

func (repo *institutionRepository) QueryBlocks(_ context.Context, campusID string, _ ...core.DBExecutor) ([]institution.Block, error) {
	blocks := repo.db.blocks.filter(func(b institution.Block) bool { return b.CampusID == campusID })
	return sortBy(blocks, func(a, b institution.Block) bool { return a.Code < b.Code }), nil
}

func (repo *institutionRepository) RoomCodeExists(_ context.Context, campusID, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.rooms.exists(func(r institution.Room) bool { return r.CampusID == campusID && r.Code == code }), nil
}

func (repo *institutionRepository) CreateRoom(_ context.Context, r institution.Room, _ ...core.DBExecutor) (institution.Room, error) {
	r.ID = uuid.NewString()
	repo.db.rooms.insert(r.ID, r)
	return r, nil
}

func (repo *institutionRepository) GetRoom(_ context.Context, id string, _ ...core.DBExecutor) (institution.Room, error) {
	if r, ok := repo.db.rooms.get(id); ok {
		return r, nil
	}
	return institution.Room{}, institution.ErrRoomNotFound
}

func (repo *institutionRepository) QueryRooms(_ context.Context, campusID string, _ ...core.DBExecutor) ([]institution.Room, error) {
	rooms := repo.db.rooms.filter(func(r institution.Room) bool { return r.CampusID == campusID })
	return sortBy(rooms, func(a, b institution.Room) bool { return a.Code < b.Code }), nil
}

func (repo *institutionRepository) UpdateRoom(_ context.Context, r institution.Room, _ ...core.DBExecutor) (institution.Room, error) {
	if !repo.db.rooms.update(r.ID, r) {
		return institution.Room{}, institution.ErrRoomNotFound
	}
	return r, nil
}

func (repo *institutionRepository) GetSettings(_ context.Context, institutionID string, _ ...core.DBExecutor) (institution.Settings, error) {
	return repo.db.getSettings(institutionID)
}

func (db *DB) getSettings(institutionID string) (institution.Settings, error) {
	if s, ok := db.settings.find(func(s institution.Settings) bool { return s.InstitutionID == institutionID }); ok {
		return s, nil
	}
	return institution.Settings{}, institution.ErrSettingsNotFound
}

func (repo *institutionRepository) SaveSettings(_ context.Context, s institution.Settings, _ ...core.DBExecutor) (institution.Settings, error) {
	if cur, err := repo.db.getSettings(s.InstitutionID); err == nil {
		s.ID = cur.ID
	} else if s.ID == "" {
		s.ID = uuid.NewString()
	}
	repo.db.settings.insert(s.ID, s)
	return s, nil
}

func (repo *institutionRepository) CreateLicense(_ context.Context, l institution.License, _ ...core.DBExecutor) (institution.License, error) {
	l.ID = uuid.NewString()
	repo.db.licenses.insert(l.ID, l)
	return l, nil
}

func (repo *institutionRepository) GetLicense(_ context.Context, institutionID string, _ ...core.DBExecutor) (institution.License, error) {
	licenses := repo.db.licenses.filter(func(l institution.License) bool { return l.InstitutionID == institutionID })
	if len(licenses) == 0 {
		return institution.License{}, institution.ErrLicenseNotFound
	}
	// latest activation wins, then the latest created
	latest := licenses[0]
	for _, l := range licenses[1:] {
		if !l.ActivatedOn.Before(latest.ActivatedOn) {
			latest = l
		}
	}
	return latest, nil
}
