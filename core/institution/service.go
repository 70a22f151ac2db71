package institution

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("institution")
	ErrCampusNotFound   = core.NewNotFoundError("campus")
	ErrBlockNotFound    = core.NewNotFoundError("block")
	ErrRoomNotFound     = core.NewNotFoundError("room")
	ErrSettingsNotFound = core.NewNotFoundError("settings")
	ErrLicenseNotFound  = core.NewNotFoundError("license")

	ErrMEDCodeExists = errors.New("an institution with this MED code already exists")
	ErrNIFExists     = errors.New("an institution with this NIF already exists")
	ErrCodeExists    = errors.New("this code is already in use")
)

type (
	Repository interface {
		// CheckInstitutionUniqueness returns ErrMEDCodeExists or ErrNIFExists.
		CheckInstitutionUniqueness(ctx context.Context, medCode, nif string, exec ...core.DBExecutor) error
		CreateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		GetInstitution(ctx context.Context, id string, exec ...core.DBExecutor) (Institution, error)
		QueryInstitutions(ctx context.Context, exec ...core.DBExecutor) ([]Institution, error)
		UpdateInstitution(ctx context.Context, inst Institution, exec ...core.DBExecutor) (Institution, error)
		// DeleteInstitution removes the institution and, in cascade, its campuses, blocks and rooms.
		DeleteInstitution(ctx context.Context, id string, exec ...core.DBExecutor) error

		CampusCodeExists(ctx context.Context, institutionID, code string, exec ...core.DBExecutor) (bool, error)
		CreateCampus(ctx context.Context, c Campus, exec ...core.DBExecutor) (Campus, error)
		GetCampus(ctx context.Context, id string, exec ...core.DBExecutor) (Campus, error)
		QueryCampuses(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]Campus, error)

		BlockCodeExists(ctx context.Context, campusID, code string, exec ...core.DBExecutor) (bool, error)
		CreateBlock(ctx context.Context, b Block, exec ...core.DBExecutor) (Block, error)
		GetBlock(ctx context.Context, id string, exec ...core.DBExecutor) (Block, error)
		QueryBlocks(ctx context.Context, campusID string, exec ...core.DBExecutor) ([]Block, error)

		RoomCodeExists(ctx context.Context, campusID, code string, exec ...core.DBExecutor) (bool, error)
		CreateRoom(ctx context.Context, r Room, exec ...core.DBExecutor) (Room, error)
		GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (Room, error)
		QueryRooms(ctx context.Context, campusID string, exec ...core.DBExecutor) ([]Room, error)
		UpdateRoom(ctx context.Context, r Room, exec ...core.DBExecutor) (Room, error)

		GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (Settings, error)
		SaveSettings(ctx context.Context, s Settings, exec ...core.DBExecutor) (Settings, error)

		CreateLicense(ctx context.Context, l License, exec ...core.DBExecutor) (License, error)
		// GetLicense returns the most recent license of the institution.
		GetLicense(ctx context.Context, institutionID string, exec ...core.DBExecutor) (License, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
	}
)

func NewService(repo Repository, tx core.TxRunner, validate *validator.Validate, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec}
}

func (svc *Service) Create(ctx context.Context, ni NewInstitution) (Institution, error) {
	if err := ni.Validate(svc.validate); err != nil {
		return Institution{}, err
	}
	if err := svc.repo.CheckInstitutionUniqueness(ctx, ni.MEDCode, ni.NIF); err != nil {
		switch err {
		case ErrMEDCodeExists:
			return Institution{}, core.NewValidationError(err, core.FieldError{Field: "med_code", Error: err.Error()})
		case ErrNIFExists:
			return Institution{}, core.NewValidationError(err, core.FieldError{Field: "nif", Error: err.Error()})
		}
		return Institution{}, errors.Wrap(err, "checking institution uniqueness")
	}

	now := core.NowFunc().UTC()
	inst := Institution{
		MEDCode:       ni.MEDCode,
		Name:          ni.Name,
		TradeName:     ni.TradeName,
		Kind:          ni.Kind,
		NIF:           ni.NIF,
		PermitNumber:  ni.PermitNumber,
		AuthorizedOn:  core.DateOf(ni.AuthorizedOn),
		FoundedOn:     ni.FoundedOn,
		Email:         ni.Email,
		Phone:         ni.Phone,
		Website:       ni.Website,
		Province:      ni.Province,
		Municipality:  ni.Municipality,
		Neighbourhood: ni.Neighbourhood,
		Street:        ni.Street,
		Currency:      ni.Currency,
		Language:      "pt",
		Timezone:      "Africa/Luanda",
		Director:      ni.Director,
		SchoolDays:    180,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if inst, err = svc.repo.CreateInstitution(ctx, inst, exec); err != nil {
			return errors.Wrap(err, "creating institution")
		}
		settings := DefaultSettings(inst.ID)
		settings.UpdatedAt = now
		if _, err = svc.repo.SaveSettings(ctx, settings, exec); err != nil {
			return errors.Wrap(err, "saving default settings")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleInstitution, inst.ID, nil, inst, exec)
	})
	if err != nil {
		return Institution{}, err
	}
	return inst, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Institution, error) {
	return svc.repo.GetInstitution(ctx, id)
}

func (svc *Service) Query(ctx context.Context) ([]Institution, error) {
	return svc.repo.QueryInstitutions(ctx)
}

func (svc *Service) Update(ctx context.Context, id string, ui UpdateInstitution) (Institution, error) {
	if err := ui.Validate(svc.validate); err != nil {
		return Institution{}, err
	}

	var inst Institution
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetInstitution(ctx, id, exec)
		if err != nil {
			return err
		}
		inst = orig
		if ui.Name != "" {
			inst.Name = ui.Name
		}
		if ui.Email != "" {
			inst.Email = ui.Email
		}
		if ui.Phone != "" {
			inst.Phone = ui.Phone
		}
		if ui.Website != "" {
			inst.Website = ui.Website
		}
		if ui.Director != "" {
			inst.Director = ui.Director
		}
		if ui.Street != "" {
			inst.Street = ui.Street
		}
		if ui.IsActive != nil {
			inst.IsActive = *ui.IsActive
		}
		inst.UpdatedAt = core.NowFunc().UTC()

		if inst, err = svc.repo.UpdateInstitution(ctx, inst, exec); err != nil {
			return errors.Wrap(err, "updating institution")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleInstitution, id, orig, inst, exec)
	})
	if err != nil {
		return Institution{}, err
	}
	return inst, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetInstitution(ctx, id, exec)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteInstitution(ctx, id, exec); err != nil {
			return errors.Wrap(err, "deleting institution")
		}
		return svc.audit.Record(ctx, audit.ActionDelete, core.ModuleInstitution, id, orig, nil, exec)
	})
}

func codeTaken(field string) error {
	return core.NewValidationError(ErrCodeExists, core.FieldError{Field: field, Error: ErrCodeExists.Error()})
}

func (svc *Service) CreateCampus(ctx context.Context, nc NewCampus) (Campus, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Campus{}, err
	}
	if _, err := svc.repo.GetInstitution(ctx, nc.InstitutionID); err != nil {
		return Campus{}, err
	}
	exists, err := svc.repo.CampusCodeExists(ctx, nc.InstitutionID, nc.Code)
	if err != nil {
		return Campus{}, errors.Wrap(err, "checking campus code")
	}
	if exists {
		return Campus{}, codeTaken("code")
	}

	c := Campus{
		InstitutionID: nc.InstitutionID,
		Code:          nc.Code,
		Name:          nc.Name,
		Province:      nc.Province,
		Municipality:  nc.Municipality,
		Street:        nc.Street,
		Phone:         nc.Phone,
		Email:         nc.Email,
		StudentCap:    nc.StudentCap,
		Director:      nc.Director,
		IsActive:      true,
		CreatedAt:     core.NowFunc().UTC(),
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if c, err = svc.repo.CreateCampus(ctx, c, exec); err != nil {
			return errors.Wrap(err, "creating campus")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleInstitution, c.ID, nil, c, exec)
	})
	if err != nil {
		return Campus{}, err
	}
	return c, nil
}

func (svc *Service) QueryCampuses(ctx context.Context, institutionID string) ([]Campus, error) {
	return svc.repo.QueryCampuses(ctx, institutionID)
}

func (svc *Service) CreateBlock(ctx context.Context, nb NewBlock) (Block, error) {
	if err := nb.Validate(svc.validate); err != nil {
		return Block{}, err
	}
	if _, err := svc.repo.GetCampus(ctx, nb.CampusID); err != nil {
		return Block{}, err
	}
	exists, err := svc.repo.BlockCodeExists(ctx, nb.CampusID, nb.Code)
	if err != nil {
		return Block{}, errors.Wrap(err, "checking block code")
	}
	if exists {
		return Block{}, codeTaken("code")
	}

	b := Block{
		CampusID:    nb.CampusID,
		Code:        nb.Code,
		Name:        nb.Name,
		Floors:      nb.Floors,
		Condition:   "regular",
		HasElevator: nb.HasElevator,
		HasRamp:     nb.HasRamp,
		CreatedAt:   core.NowFunc().UTC(),
	}
	b, err = svc.repo.CreateBlock(ctx, b)
	return b, errors.Wrap(err, "creating block")
}

func (svc *Service) QueryBlocks(ctx context.Context, campusID string) ([]Block, error) {
	return svc.repo.QueryBlocks(ctx, campusID)
}

func (svc *Service) CreateRoom(ctx context.Context, nr NewRoom) (Room, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Room{}, err
	}
	if _, err := svc.repo.GetCampus(ctx, nr.CampusID); err != nil {
		return Room{}, err
	}
	if nr.BlockID != nil {
		blk, err := svc.repo.GetBlock(ctx, *nr.BlockID)
		if err != nil {
			return Room{}, err
		}
		if blk.CampusID != nr.CampusID {
			return Room{}, core.NewFieldError("block_id", "block belongs to another campus")
		}
	}
	exists, err := svc.repo.RoomCodeExists(ctx, nr.CampusID, nr.Code)
	if err != nil {
		return Room{}, errors.Wrap(err, "checking room code")
	}
	if exists {
		return Room{}, codeTaken("code")
	}

	r := Room{
		CampusID:     nr.CampusID,
		BlockID:      nr.BlockID,
		Code:         nr.Code,
		Name:         nr.Name,
		Kind:         nr.Kind,
		Capacity:     nr.Capacity,
		Floor:        nr.Floor,
		HasProjector: nr.HasProjector,
		HasAC:        nr.HasAC,
		HasInternet:  nr.HasInternet,
		Computers:    nr.Computers,
		Available:    true,
		CreatedAt:    core.NowFunc().UTC(),
	}
	r, err = svc.repo.CreateRoom(ctx, r)
	return r, errors.Wrap(err, "creating room")
}

func (svc *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, id)
}

func (svc *Service) QueryRooms(ctx context.Context, campusID string) ([]Room, error) {
	return svc.repo.QueryRooms(ctx, campusID)
}

// UpdateRoom changes the capacity or availability of a room (e.g. maintenance windows).
func (svc *Service) UpdateRoom(ctx context.Context, id string, ur UpdateRoom) (Room, error) {
	if err := svc.validate.Struct(ur); err != nil {
		return Room{}, err
	}
	var r Room
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetRoom(ctx, id, exec)
		if err != nil {
			return err
		}
		r = orig
		if ur.Capacity > 0 {
			r.Capacity = ur.Capacity
		}
		if ur.Available != nil {
			r.Available = *ur.Available
		}
		if ur.MaintenanceUntil != nil {
			d := core.DateOf(*ur.MaintenanceUntil)
			r.MaintenanceUntil = &d
		}
		if r, err = svc.repo.UpdateRoom(ctx, r, exec); err != nil {
			return errors.Wrap(err, "updating room")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleInstitution, id, orig, r, exec)
	})
	if err != nil {
		return Room{}, err
	}
	return r, nil
}

// Settings returns the stored settings of the institution, or the defaults when none were saved.
func (svc *Service) Settings(ctx context.Context, institutionID string) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, institutionID)
	if err != nil {
		if errors.Cause(err) == ErrSettingsNotFound {
			return DefaultSettings(institutionID), nil
		}
		return Settings{}, errors.Wrap(err, "getting settings")
	}
	return s, nil
}

func (svc *Service) UpdateSettings(ctx context.Context, institutionID string, s Settings) (Settings, error) {
	s.InstitutionID = institutionID
	if err := s.Validate(svc.validate); err != nil {
		return Settings{}, err
	}
	if _, err := svc.repo.GetInstitution(ctx, institutionID); err != nil {
		return Settings{}, err
	}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetSettings(ctx, institutionID, exec)
		if err != nil && errors.Cause(err) != ErrSettingsNotFound {
			return errors.Wrap(err, "getting settings")
		}
		s.ID = orig.ID
		s.UpdatedAt = core.NowFunc().UTC()
		if s, err = svc.repo.SaveSettings(ctx, s, exec); err != nil {
			return errors.Wrap(err, "saving settings")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleInstitution, institutionID, orig, s, exec)
	})
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (svc *Service) RegisterLicense(ctx context.Context, nl NewLicense) (License, error) {
	if err := nl.Validate(svc.validate); err != nil {
		return License{}, err
	}
	if _, err := svc.repo.GetInstitution(ctx, nl.InstitutionID); err != nil {
		return License{}, err
	}
	l := License{
		InstitutionID: nl.InstitutionID,
		Code:          nl.Code,
		Product:       nl.Product,
		Version:       nl.Version,
		ActivatedOn:   nl.ActivatedOn,
		ExpiresOn:     nl.ExpiresOn,
		MaxUsers:      nl.MaxUsers,
		MaxStudents:   nl.MaxStudents,
		Modules:       nl.Modules,
		IsActive:      true,
		AutoRenew:     nl.AutoRenew,
		CreatedAt:     core.NowFunc().UTC(),
	}
	l, err := svc.repo.CreateLicense(ctx, l)
	return l, errors.Wrap(err, "creating license")
}

// LicenseInfo is a License with its status computed for a given day.
type LicenseInfo struct {
	License
	DaysRemaining int           `json:"days_remaining"`
	Status        LicenseStatus `json:"status"`
}

func (svc *Service) License(ctx context.Context, institutionID string, today time.Time) (LicenseInfo, error) {
	l, err := svc.repo.GetLicense(ctx, institutionID)
	if err != nil {
		return LicenseInfo{}, err
	}
	return LicenseInfo{License: l, DaysRemaining: l.DaysRemaining(today), Status: l.Status(today)}, nil
}
